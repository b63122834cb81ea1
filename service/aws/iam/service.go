// Package awsiam deletes roles, instance profiles, customer managed policies
// and OIDC providers. Each kind is detached from everything that references
// it before the delete call.
package awsiam

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/chainguard-dev/clog"
	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	"github.com/elC0mpa/aws-teardown/service/awserr"
	"github.com/elC0mpa/aws-teardown/service/retry"
)

const Name = "iam"

const (
	kindRole            = "role"
	kindInstanceProfile = "instance-profile"
	kindPolicy          = "policy"
	kindOIDCProvider    = "oidc-provider"

	subListLimit = 1000
)

// Paths owned by AWS. Roles under them cannot be deleted by the account.
var reservedPaths = []string{"/aws-service-role/", "/aws-reserved/"}

func NewService(opts ...Option) *service {
	s := &service{
		newClient: func(cfg aws.Config) IAMAPI { return iam.NewFromConfig(cfg) },
		retry:     retry.Default,
		protected: map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Name() string { return Name }

func (s *service) Global() bool { return true }

func tagMap(list []types.Tag) map[string]string {
	if len(list) == 0 {
		return nil
	}
	tags := make(map[string]string, len(list))
	for _, t := range list {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}

func (s *service) Enumerate(ctx context.Context, client core.ClientHandle, target model.Target) ([]model.ResourceDescriptor, error) {
	cli := s.newClient(client.Config(target.Region))
	base := model.ResourceDescriptor{ServiceType: Name, Region: target.Region, AccountID: client.AccountID()}

	roles, err := s.roles(ctx, cli, base)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	profiles, err := s.instanceProfiles(ctx, cli, base)
	if err != nil {
		return nil, fmt.Errorf("listing instance profiles: %w", err)
	}
	policies, err := s.policies(ctx, cli, base)
	if err != nil {
		return nil, fmt.Errorf("listing policies: %w", err)
	}
	providers, err := s.oidcProviders(ctx, cli, base)
	if err != nil {
		return nil, fmt.Errorf("listing OIDC providers: %w", err)
	}

	out := append(roles, profiles...)
	out = append(out, policies...)
	return append(out, providers...), nil
}

func (s *service) roles(ctx context.Context, cli IAMAPI, base model.ResourceDescriptor) ([]model.ResourceDescriptor, error) {
	var (
		descriptors []model.ResourceDescriptor
		marker      *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*iam.ListRolesOutput, error) {
			return cli.ListRoles(ctx, &iam.ListRolesInput{Marker: marker})
		})
		if err != nil {
			return nil, err
		}

		for _, role := range out.Roles {
			name := aws.ToString(role.RoleName)
			if s.protected[name] || reserved(aws.ToString(role.Path)) {
				continue
			}
			d := base
			d.Kind, d.Identifier, d.Name, d.ARN = kindRole, name, name, aws.ToString(role.Arn)
			if t, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*iam.ListRoleTagsOutput, error) {
				return cli.ListRoleTags(ctx, &iam.ListRoleTagsInput{RoleName: aws.String(name)})
			}); err == nil {
				d.Tags = tagMap(t.Tags)
			}
			descriptors = append(descriptors, d)
		}

		if out.Marker == nil {
			return descriptors, nil
		}
		marker = out.Marker
	}
}

func reserved(path string) bool {
	for _, p := range reservedPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (s *service) instanceProfiles(ctx context.Context, cli IAMAPI, base model.ResourceDescriptor) ([]model.ResourceDescriptor, error) {
	var (
		descriptors []model.ResourceDescriptor
		marker      *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*iam.ListInstanceProfilesOutput, error) {
			return cli.ListInstanceProfiles(ctx, &iam.ListInstanceProfilesInput{Marker: marker})
		})
		if err != nil {
			return nil, err
		}

		for _, p := range out.InstanceProfiles {
			name := aws.ToString(p.InstanceProfileName)
			d := base
			d.Kind, d.Identifier, d.Name, d.ARN = kindInstanceProfile, name, name, aws.ToString(p.Arn)
			if t, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*iam.ListInstanceProfileTagsOutput, error) {
				return cli.ListInstanceProfileTags(ctx, &iam.ListInstanceProfileTagsInput{InstanceProfileName: aws.String(name)})
			}); err == nil {
				d.Tags = tagMap(t.Tags)
			}
			descriptors = append(descriptors, d)
		}

		if out.Marker == nil {
			return descriptors, nil
		}
		marker = out.Marker
	}
}

func (s *service) policies(ctx context.Context, cli IAMAPI, base model.ResourceDescriptor) ([]model.ResourceDescriptor, error) {
	var (
		descriptors []model.ResourceDescriptor
		marker      *string
	)
	for {
		out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*iam.ListPoliciesOutput, error) {
			return cli.ListPolicies(ctx, &iam.ListPoliciesInput{Scope: types.PolicyScopeTypeLocal, Marker: marker})
		})
		if err != nil {
			return nil, err
		}

		for _, p := range out.Policies {
			arn := aws.ToString(p.Arn)
			d := base
			d.Kind, d.Identifier, d.Name, d.ARN = kindPolicy, arn, aws.ToString(p.PolicyName), arn
			if t, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*iam.ListPolicyTagsOutput, error) {
				return cli.ListPolicyTags(ctx, &iam.ListPolicyTagsInput{PolicyArn: aws.String(arn)})
			}); err == nil {
				d.Tags = tagMap(t.Tags)
			}
			descriptors = append(descriptors, d)
		}

		if out.Marker == nil {
			return descriptors, nil
		}
		marker = out.Marker
	}
}

func (s *service) oidcProviders(ctx context.Context, cli IAMAPI, base model.ResourceDescriptor) ([]model.ResourceDescriptor, error) {
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*iam.ListOpenIDConnectProvidersOutput, error) {
		return cli.ListOpenIDConnectProviders(ctx, &iam.ListOpenIDConnectProvidersInput{})
	})
	if err != nil {
		return nil, err
	}

	var descriptors []model.ResourceDescriptor
	for _, p := range out.OpenIDConnectProviderList {
		arn := aws.ToString(p.Arn)
		d := base
		d.Kind, d.Identifier, d.ARN = kindOIDCProvider, arn, arn
		d.Name = arn[strings.Index(arn, "oidc-provider/")+len("oidc-provider/"):]
		if t, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*iam.ListOpenIDConnectProviderTagsOutput, error) {
			return cli.ListOpenIDConnectProviderTags(ctx, &iam.ListOpenIDConnectProviderTagsInput{OpenIDConnectProviderArn: aws.String(arn)})
		}); err == nil {
			d.Tags = tagMap(t.Tags)
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

func (s *service) Destroy(ctx context.Context, client core.ClientHandle, r model.ResourceDescriptor, exec model.ExecutionContext) model.DestructionOutcome {
	ctx = retry.WithAttemptTimeout(ctx, exec.OperationTimeout)
	cli := s.newClient(client.Config(r.Region))

	var err error
	switch r.Kind {
	case kindRole:
		err = s.destroyRole(ctx, cli, r.Identifier)
	case kindInstanceProfile:
		err = s.destroyInstanceProfile(ctx, cli, r.Identifier)
	case kindPolicy:
		err = s.destroyPolicy(ctx, cli, r.Identifier)
	case kindOIDCProvider:
		err = s.call(ctx, func(ctx context.Context) error {
			_, err := cli.DeleteOpenIDConnectProvider(ctx, &iam.DeleteOpenIDConnectProviderInput{OpenIDConnectProviderArn: aws.String(r.Identifier)})
			return err
		})
	default:
		err = fmt.Errorf("unknown IAM resource kind %q", r.Kind)
	}
	return awserr.Outcome(r, err)
}

func (s *service) call(ctx context.Context, op func(context.Context) error) error {
	return retry.Run(ctx, s.retry, op)
}

func (s *service) destroyRole(ctx context.Context, cli IAMAPI, name string) error {
	role := aws.String(name)
	if err := s.call(ctx, func(ctx context.Context) error {
		_, err := cli.GetRole(ctx, &iam.GetRoleInput{RoleName: role})
		return err
	}); err != nil {
		return err
	}

	attached, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*iam.ListAttachedRolePoliciesOutput, error) {
		return cli.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{RoleName: role, MaxItems: aws.Int32(subListLimit)})
	})
	if err != nil {
		return fmt.Errorf("listing attached policies: %w", err)
	}
	for _, p := range attached.AttachedPolicies {
		if err := s.call(ctx, func(ctx context.Context) error {
			_, err := cli.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{RoleName: role, PolicyArn: p.PolicyArn})
			return err
		}); err != nil && !awserr.IsNotFound(err) {
			return fmt.Errorf("detaching %s: %w", aws.ToString(p.PolicyArn), err)
		}
	}

	inline, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*iam.ListRolePoliciesOutput, error) {
		return cli.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{RoleName: role, MaxItems: aws.Int32(subListLimit)})
	})
	if err != nil {
		return fmt.Errorf("listing inline policies: %w", err)
	}
	for _, p := range inline.PolicyNames {
		if err := s.call(ctx, func(ctx context.Context) error {
			_, err := cli.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{RoleName: role, PolicyName: aws.String(p)})
			return err
		}); err != nil && !awserr.IsNotFound(err) {
			return fmt.Errorf("deleting inline policy %s: %w", p, err)
		}
	}

	profiles, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*iam.ListInstanceProfilesForRoleOutput, error) {
		return cli.ListInstanceProfilesForRole(ctx, &iam.ListInstanceProfilesForRoleInput{RoleName: role, MaxItems: aws.Int32(subListLimit)})
	})
	if err != nil {
		return fmt.Errorf("listing instance profiles: %w", err)
	}
	for _, p := range profiles.InstanceProfiles {
		if err := s.call(ctx, func(ctx context.Context) error {
			_, err := cli.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{RoleName: role, InstanceProfileName: p.InstanceProfileName})
			return err
		}); err != nil && !awserr.IsNotFound(err) {
			return fmt.Errorf("removing from %s: %w", aws.ToString(p.InstanceProfileName), err)
		}
	}

	clog.DebugContext(ctx, "role detached", "role", name, "managed", len(attached.AttachedPolicies), "inline", len(inline.PolicyNames), "profiles", len(profiles.InstanceProfiles))
	return s.call(ctx, func(ctx context.Context) error {
		_, err := cli.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: role})
		return err
	})
}

func (s *service) destroyInstanceProfile(ctx context.Context, cli IAMAPI, name string) error {
	profile := aws.String(name)
	out, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*iam.GetInstanceProfileOutput, error) {
		return cli.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{InstanceProfileName: profile})
	})
	if err != nil {
		return err
	}

	if out.InstanceProfile != nil {
		for _, role := range out.InstanceProfile.Roles {
			if err := s.call(ctx, func(ctx context.Context) error {
				_, err := cli.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{InstanceProfileName: profile, RoleName: role.RoleName})
				return err
			}); err != nil && !awserr.IsNotFound(err) {
				return fmt.Errorf("removing role %s: %w", aws.ToString(role.RoleName), err)
			}
		}
	}

	return s.call(ctx, func(ctx context.Context) error {
		_, err := cli.DeleteInstanceProfile(ctx, &iam.DeleteInstanceProfileInput{InstanceProfileName: profile})
		return err
	})
}

func (s *service) destroyPolicy(ctx context.Context, cli IAMAPI, arn string) error {
	policyArn := aws.String(arn)
	policy, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*iam.GetPolicyOutput, error) {
		return cli.GetPolicy(ctx, &iam.GetPolicyInput{PolicyArn: policyArn})
	})
	if err != nil {
		return err
	}

	entities, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*iam.ListEntitiesForPolicyOutput, error) {
		return cli.ListEntitiesForPolicy(ctx, &iam.ListEntitiesForPolicyInput{PolicyArn: policyArn, MaxItems: aws.Int32(subListLimit)})
	})
	if err != nil {
		return fmt.Errorf("listing policy entities: %w", err)
	}

	var detach []func(context.Context) error
	for _, r := range entities.PolicyRoles {
		detach = append(detach, func(ctx context.Context) error {
			_, err := cli.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{PolicyArn: policyArn, RoleName: r.RoleName})
			return err
		})
	}
	for _, u := range entities.PolicyUsers {
		detach = append(detach, func(ctx context.Context) error {
			_, err := cli.DetachUserPolicy(ctx, &iam.DetachUserPolicyInput{PolicyArn: policyArn, UserName: u.UserName})
			return err
		})
	}
	for _, g := range entities.PolicyGroups {
		detach = append(detach, func(ctx context.Context) error {
			_, err := cli.DetachGroupPolicy(ctx, &iam.DetachGroupPolicyInput{PolicyArn: policyArn, GroupName: g.GroupName})
			return err
		})
	}
	for _, op := range detach {
		if err := s.call(ctx, op); err != nil && !awserr.IsNotFound(err) {
			return fmt.Errorf("detaching policy: %w", err)
		}
	}

	versions, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*iam.ListPolicyVersionsOutput, error) {
		return cli.ListPolicyVersions(ctx, &iam.ListPolicyVersionsInput{PolicyArn: policyArn})
	})
	if err != nil {
		return fmt.Errorf("listing policy versions: %w", err)
	}
	defaultVersion := ""
	if policy.Policy != nil {
		defaultVersion = aws.ToString(policy.Policy.DefaultVersionId)
	}
	for _, v := range versions.Versions {
		if aws.ToString(v.VersionId) == defaultVersion {
			continue
		}
		if err := s.call(ctx, func(ctx context.Context) error {
			_, err := cli.DeletePolicyVersion(ctx, &iam.DeletePolicyVersionInput{PolicyArn: policyArn, VersionId: v.VersionId})
			return err
		}); err != nil && !awserr.IsNotFound(err) {
			return fmt.Errorf("deleting policy version %s: %w", aws.ToString(v.VersionId), err)
		}
	}

	return s.call(ctx, func(ctx context.Context) error {
		_, err := cli.DeletePolicy(ctx, &iam.DeletePolicyInput{PolicyArn: policyArn})
		return err
	})
}
