package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"go.uber.org/zap"
)

// S3ReadOnlyPolicy is attached to the role the cluster assumes for COPY.
const S3ReadOnlyPolicy = "arn:aws:iam::aws:policy/AmazonS3ReadOnlyAccess"

const redshiftTrustPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"Service":"redshift.amazonaws.com"},"Action":"sts:AssumeRole"}]}`

// IAMAPI is the part of the IAM client Roles uses.
type IAMAPI interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	DetachRolePolicy(ctx context.Context, params *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error)
	DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
}

var _ IAMAPI = (*iam.Client)(nil)

// Roles manages the storage-access role.
type Roles struct {
	logger *zap.Logger
	api    IAMAPI
}

// NewRoles returns Roles backed by api.
func NewRoles(logger *zap.Logger, api IAMAPI) *Roles {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roles{logger: logger, api: api}
}

// Ensure creates the role trusted by Redshift if it does not exist yet,
// attaches the S3 read-only policy and returns the role ARN.
func (r *Roles) Ensure(ctx context.Context, name string) (string, error) {
	_, err := r.api.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		Path:                     aws.String("/"),
		Description:              aws.String("Allows Redshift clusters to read from S3"),
		AssumeRolePolicyDocument: aws.String(redshiftTrustPolicy),
	})
	var exists *iamtypes.EntityAlreadyExistsException
	switch {
	case errors.As(err, &exists):
		r.logger.Info("iam role already exists", zap.String("role", name))
	case err != nil:
		return "", fmt.Errorf("create role %s: %w", name, err)
	default:
		r.logger.Info("iam role created", zap.String("role", name))
	}

	if _, err := r.api.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(name),
		PolicyArn: aws.String(S3ReadOnlyPolicy),
	}); err != nil {
		return "", fmt.Errorf("attach policy to role %s: %w", name, err)
	}

	out, err := r.api.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("get role %s: %w", name, err)
	}
	if out.Role == nil || aws.ToString(out.Role.Arn) == "" {
		return "", fmt.Errorf("get role %s: no arn returned", name)
	}
	return aws.ToString(out.Role.Arn), nil
}

// Delete detaches the policy and deletes the role. A role that is already
// gone is not an error.
func (r *Roles) Delete(ctx context.Context, name string) error {
	var missing *iamtypes.NoSuchEntityException
	if _, err := r.api.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
		RoleName:  aws.String(name),
		PolicyArn: aws.String(S3ReadOnlyPolicy),
	}); err != nil && !errors.As(err, &missing) {
		return fmt.Errorf("detach policy from role %s: %w", name, err)
	}
	if _, err := r.api.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(name)}); err != nil {
		if errors.As(err, &missing) {
			r.logger.Info("iam role already deleted", zap.String("role", name))
			return nil
		}
		return fmt.Errorf("delete role %s: %w", name, err)
	}
	r.logger.Info("iam role deleted", zap.String("role", name))
	return nil
}
