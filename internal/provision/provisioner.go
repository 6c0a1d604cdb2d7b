package provision

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"go.uber.org/zap"

	"sparkify/internal/config"
)

// DefaultMaxWait bounds how long Up and Down wait for the cluster.
const DefaultMaxWait = 30 * time.Minute

// Provisioner sequences role, cluster and network setup.
type Provisioner struct {
	logger   *zap.Logger
	Roles    *Roles
	Clusters *Clusters
	Network  *Network
	MaxWait  time.Duration
	CIDR     string
}

// New returns a Provisioner using real AWS clients built from cfg.
func New(logger *zap.Logger, cfg aws.Config) *Provisioner {
	return NewWith(logger, iam.NewFromConfig(cfg), redshift.NewFromConfig(cfg), ec2.NewFromConfig(cfg))
}

// NewWith returns a Provisioner on the given clients.
func NewWith(logger *zap.Logger, i IAMAPI, r RedshiftAPI, e EC2API) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{
		logger:   logger,
		Roles:    NewRoles(logger, i),
		Clusters: NewClusters(logger, r),
		Network:  NewNetwork(logger, e),
		MaxWait:  DefaultMaxWait,
		CIDR:     DefaultCIDR,
	}
}

// Up makes sure the role, the cluster and the ingress rule exist and returns
// the values a run needs to connect and COPY. Every step tolerates a
// resource that already exists, so Up can be repeated.
func (p *Provisioner) Up(ctx context.Context, rec config.Record) (config.Resolved, error) {
	if err := config.Check(config.ValidateProvisioning(rec)); err != nil {
		return config.Resolved{}, err
	}

	p.logger.Info("provisioning iam role", zap.String("role", rec.RoleName))
	storageARN, err := p.Roles.Ensure(ctx, rec.RoleName)
	if err != nil {
		return config.Resolved{}, err
	}

	roles := []string{storageARN}
	if config.IsRoleARN(rec.ClusterRoleARN) && rec.ClusterRoleARN != storageARN {
		roles = append(roles, rec.ClusterRoleARN)
	}

	p.logger.Info("provisioning cluster", zap.String("cluster", rec.ClusterIdentifier))
	if err := p.Clusters.Create(ctx, rec, roles); err != nil {
		return config.Resolved{}, err
	}
	cl, err := p.Clusters.WaitAvailable(ctx, rec.ClusterIdentifier, p.maxWait())
	if err != nil {
		return config.Resolved{}, err
	}

	port := cl.Port
	if port == 0 {
		n, err := strconv.ParseInt(rec.DBPort, 10, 32)
		if err != nil {
			return config.Resolved{}, fmt.Errorf("db_port: %w", err)
		}
		port = int32(n)
	}
	if err := p.Network.OpenPort(ctx, cl, p.CIDR, port); err != nil {
		return config.Resolved{}, err
	}

	res := config.Resolved{
		StorageRoleARN: storageARN,
		ClusterRoleARN: storageARN,
		Host:           cl.Host,
		Port:           strconv.Itoa(int(port)),
	}
	if len(roles) > 1 {
		res.ClusterRoleARN = roles[1]
	}
	p.logger.Info("provisioning done", zap.String("host", res.Host), zap.String("port", res.Port))
	return res, nil
}

// Down deletes the cluster, waits for it to disappear and deletes the role.
func (p *Provisioner) Down(ctx context.Context, rec config.Record) error {
	if err := config.Check(config.ValidateProvisioning(rec)); err != nil {
		return err
	}
	if err := p.Clusters.Delete(ctx, rec.ClusterIdentifier); err != nil {
		return err
	}
	if err := p.Clusters.WaitDeleted(ctx, rec.ClusterIdentifier, p.maxWait()); err != nil {
		return err
	}
	return p.Roles.Delete(ctx, rec.RoleName)
}

func (p *Provisioner) maxWait() time.Duration {
	if p.MaxWait <= 0 {
		return DefaultMaxWait
	}
	return p.MaxWait
}
