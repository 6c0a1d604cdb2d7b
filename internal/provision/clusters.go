package provision

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	rstypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"
	"go.uber.org/zap"

	"sparkify/internal/config"
)

// RedshiftAPI is the part of the Redshift client Clusters uses.
type RedshiftAPI interface {
	redshift.DescribeClustersAPIClient
	CreateCluster(ctx context.Context, params *redshift.CreateClusterInput, optFns ...func(*redshift.Options)) (*redshift.CreateClusterOutput, error)
	DeleteCluster(ctx context.Context, params *redshift.DeleteClusterInput, optFns ...func(*redshift.Options)) (*redshift.DeleteClusterOutput, error)
}

var _ RedshiftAPI = (*redshift.Client)(nil)

// Cluster is what provisioning learns about an available cluster.
type Cluster struct {
	ID               string
	Host             string
	Port             int32
	VPCID            string
	SecurityGroupIDs []string
	RoleARNs         []string
}

// Clusters creates, waits for and deletes Redshift clusters.
type Clusters struct {
	logger *zap.Logger
	api    RedshiftAPI
	// PollDelay is the shortest wait between two status polls. Zero keeps the
	// waiter defaults.
	PollDelay time.Duration
}

// NewClusters returns Clusters backed by api.
func NewClusters(logger *zap.Logger, api RedshiftAPI) *Clusters {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Clusters{logger: logger, api: api}
}

// Create asks Redshift for the cluster described by rec with roleARNs
// attached. A cluster that already exists is left as is.
func (c *Clusters) Create(ctx context.Context, rec config.Record, roleARNs []string) error {
	nodes, err := strconv.ParseInt(rec.NumNodes, 10, 32)
	if err != nil {
		return fmt.Errorf("cluster %s: db_num_nodes: %w", rec.ClusterIdentifier, err)
	}
	port, err := strconv.ParseInt(rec.DBPort, 10, 32)
	if err != nil {
		return fmt.Errorf("cluster %s: db_port: %w", rec.ClusterIdentifier, err)
	}

	in := &redshift.CreateClusterInput{
		ClusterIdentifier:  aws.String(rec.ClusterIdentifier),
		ClusterType:        aws.String(rec.ClusterType),
		NodeType:           aws.String(rec.NodeType),
		DBName:             aws.String(rec.DBName),
		MasterUsername:     aws.String(rec.DBUser),
		MasterUserPassword: aws.String(rec.DBPassword),
		Port:               aws.Int32(int32(port)),
		IamRoles:           roleARNs,
		PubliclyAccessible: aws.Bool(true),
	}
	if rec.ClusterType == "multi-node" {
		in.NumberOfNodes = aws.Int32(int32(nodes))
	}

	_, err = c.api.CreateCluster(ctx, in)
	var exists *rstypes.ClusterAlreadyExistsFault
	switch {
	case errors.As(err, &exists):
		c.logger.Info("cluster already exists", zap.String("cluster", rec.ClusterIdentifier))
		return nil
	case err != nil:
		return fmt.Errorf("create cluster %s: %w", rec.ClusterIdentifier, err)
	}
	c.logger.Info("cluster creation requested",
		zap.String("cluster", rec.ClusterIdentifier),
		zap.String("node_type", rec.NodeType),
		zap.Int64("nodes", nodes),
	)
	return nil
}

// WaitAvailable blocks until the cluster reports available or max elapses
// and returns its endpoint.
func (c *Clusters) WaitAvailable(ctx context.Context, id string, max time.Duration) (Cluster, error) {
	w := redshift.NewClusterAvailableWaiter(c.api, func(o *redshift.ClusterAvailableWaiterOptions) {
		if c.PollDelay > 0 {
			o.MinDelay = c.PollDelay
			o.MaxDelay = c.PollDelay
		}
	})
	start := time.Now()
	out, err := w.WaitForOutput(ctx, &redshift.DescribeClustersInput{ClusterIdentifier: aws.String(id)}, max)
	if err != nil {
		return Cluster{}, fmt.Errorf("wait for cluster %s: %w", id, err)
	}
	if len(out.Clusters) == 0 {
		return Cluster{}, fmt.Errorf("wait for cluster %s: not described", id)
	}
	cl := toCluster(out.Clusters[0])
	if cl.Host == "" {
		return Cluster{}, fmt.Errorf("cluster %s is available without an endpoint", id)
	}
	c.logger.Info("cluster available",
		zap.String("cluster", id),
		zap.String("host", cl.Host),
		zap.Duration("waited", time.Since(start)),
	)
	return cl, nil
}

// Delete deletes the cluster without a final snapshot. A cluster that does
// not exist is not an error.
func (c *Clusters) Delete(ctx context.Context, id string) error {
	_, err := c.api.DeleteCluster(ctx, &redshift.DeleteClusterInput{
		ClusterIdentifier:        aws.String(id),
		SkipFinalClusterSnapshot: aws.Bool(true),
	})
	var missing *rstypes.ClusterNotFoundFault
	switch {
	case errors.As(err, &missing):
		c.logger.Info("cluster already deleted", zap.String("cluster", id))
		return nil
	case err != nil:
		return fmt.Errorf("delete cluster %s: %w", id, err)
	}
	c.logger.Info("cluster deletion requested", zap.String("cluster", id))
	return nil
}

// WaitDeleted blocks until the cluster is gone or max elapses.
func (c *Clusters) WaitDeleted(ctx context.Context, id string, max time.Duration) error {
	w := redshift.NewClusterDeletedWaiter(c.api, func(o *redshift.ClusterDeletedWaiterOptions) {
		if c.PollDelay > 0 {
			o.MinDelay = c.PollDelay
			o.MaxDelay = c.PollDelay
		}
	})
	if err := w.Wait(ctx, &redshift.DescribeClustersInput{ClusterIdentifier: aws.String(id)}, max); err != nil {
		return fmt.Errorf("wait for cluster %s deletion: %w", id, err)
	}
	c.logger.Info("cluster deleted", zap.String("cluster", id))
	return nil
}

func toCluster(in rstypes.Cluster) Cluster {
	cl := Cluster{
		ID:    aws.ToString(in.ClusterIdentifier),
		VPCID: aws.ToString(in.VpcId),
	}
	if in.Endpoint != nil {
		cl.Host = aws.ToString(in.Endpoint.Address)
		cl.Port = aws.ToInt32(in.Endpoint.Port)
	}
	for _, sg := range in.VpcSecurityGroups {
		if id := aws.ToString(sg.VpcSecurityGroupId); id != "" {
			cl.SecurityGroupIDs = append(cl.SecurityGroupIDs, id)
		}
	}
	for _, r := range in.IamRoles {
		if arn := aws.ToString(r.IamRoleArn); arn != "" {
			cl.RoleARNs = append(cl.RoleARNs, arn)
		}
	}
	return cl
}
