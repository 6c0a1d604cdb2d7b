package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// DefaultCIDR is the source range opened when none is configured.
const DefaultCIDR = "0.0.0.0/0"

const errCodeDuplicatePermission = "InvalidPermission.Duplicate"

// EC2API is the part of the EC2 client Network uses.
type EC2API interface {
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
}

var _ EC2API = (*ec2.Client)(nil)

// Network opens the cluster port.
type Network struct {
	logger *zap.Logger
	api    EC2API
}

// NewNetwork returns a Network backed by api.
func NewNetwork(logger *zap.Logger, api EC2API) *Network {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Network{logger: logger, api: api}
}

// OpenPort allows TCP traffic from cidr to port on the cluster's security
// group. Clusters without an explicit group use the default group of their
// VPC. An identical existing rule is not an error.
func (n *Network) OpenPort(ctx context.Context, cl Cluster, cidr string, port int32) error {
	if cidr == "" {
		cidr = DefaultCIDR
	}
	group, err := n.securityGroup(ctx, cl)
	if err != nil {
		return err
	}

	_, err = n.api.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:    aws.String(group),
		IpProtocol: aws.String("tcp"),
		CidrIp:     aws.String(cidr),
		FromPort:   aws.Int32(port),
		ToPort:     aws.Int32(port),
	})
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == errCodeDuplicatePermission {
		n.logger.Info("ingress rule already present", zap.String("group", group), zap.Int32("port", port))
		return nil
	}
	if err != nil {
		return fmt.Errorf("authorize ingress on %s: %w", group, err)
	}
	n.logger.Info("ingress rule added", zap.String("group", group), zap.String("cidr", cidr), zap.Int32("port", port))
	return nil
}

func (n *Network) securityGroup(ctx context.Context, cl Cluster) (string, error) {
	if len(cl.SecurityGroupIDs) > 0 {
		return cl.SecurityGroupIDs[0], nil
	}
	if cl.VPCID == "" {
		return "", fmt.Errorf("cluster %s has neither a security group nor a vpc", cl.ID)
	}
	out, err := n.api.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{cl.VPCID}},
			{Name: aws.String("group-name"), Values: []string{"default"}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("describe security groups of %s: %w", cl.VPCID, err)
	}
	if len(out.SecurityGroups) == 0 {
		return "", fmt.Errorf("vpc %s has no default security group", cl.VPCID)
	}
	return aws.ToString(out.SecurityGroups[0].GroupId), nil
}
