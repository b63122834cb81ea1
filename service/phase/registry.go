package phase

import (
	"fmt"
	"slices"

	"github.com/elC0mpa/aws-teardown/model"
	core "github.com/elC0mpa/aws-teardown/service"
	awsalarms "github.com/elC0mpa/aws-teardown/service/aws/alarms"
	awsbudgets "github.com/elC0mpa/aws-teardown/service/aws/budgets"
	awscloudfront "github.com/elC0mpa/aws-teardown/service/aws/cloudfront"
	awscloudtrail "github.com/elC0mpa/aws-teardown/service/aws/cloudtrail"
	awsdynamodb "github.com/elC0mpa/aws-teardown/service/aws/dynamodb"
	awsec2 "github.com/elC0mpa/aws-teardown/service/aws/ec2"
	awselb "github.com/elC0mpa/aws-teardown/service/aws/elb"
	awsiam "github.com/elC0mpa/aws-teardown/service/aws/iam"
	awskms "github.com/elC0mpa/aws-teardown/service/aws/kms"
	awslambda "github.com/elC0mpa/aws-teardown/service/aws/lambda"
	awslogs "github.com/elC0mpa/aws-teardown/service/aws/logs"
	awsorganizations "github.com/elC0mpa/aws-teardown/service/aws/organizations"
	awsrds "github.com/elC0mpa/aws-teardown/service/aws/rds"
	awsroute53 "github.com/elC0mpa/aws-teardown/service/aws/route53"
	awss3 "github.com/elC0mpa/aws-teardown/service/aws/s3"
	awssns "github.com/elC0mpa/aws-teardown/service/aws/sns"
	awsssm "github.com/elC0mpa/aws-teardown/service/aws/ssm"
	awswafv2 "github.com/elC0mpa/aws-teardown/service/aws/wafv2"
)

var _ core.Registry = &registry{}

type registry struct {
	byName map[string]core.Destroyer
	order  []string
}

// NewRegistry indexes destroyers by name. Registering two destroyers under
// the same name is a programming error.
func NewRegistry(destroyers ...core.Destroyer) *registry {
	r := &registry{byName: make(map[string]core.Destroyer, len(destroyers))}
	for _, d := range destroyers {
		if _, dup := r.byName[d.Name()]; dup {
			panic(fmt.Sprintf("destroyer %q registered twice", d.Name()))
		}
		r.byName[d.Name()] = d
		r.order = append(r.order, d.Name())
	}
	return r
}

// NewDefaultRegistry builds every AWS destroyer, configured from cfg.
func NewDefaultRegistry(cfg model.Config) *registry {
	var members []string
	for _, a := range cfg.Accounts {
		if a.ID != cfg.ManagementAccountID && a.Environment != "management" && a.Environment != "shared" {
			members = append(members, a.ID)
		}
	}

	return NewRegistry(
		awsdynamodb.NewService(),
		awscloudfront.NewService(),
		awswafv2.NewService(),
		awscloudtrail.NewService(),
		awslogs.NewService(),
		awss3.NewService(),
		awslambda.NewService(),
		awsrds.NewService(),
		awsalarms.NewService(),
		awssns.NewService(),
		awsroute53.NewService(),
		awsiam.NewService(awsiam.WithProtectedRoles(cfg.CrossAccountRoleName)),
		awskms.NewService(),
		awsbudgets.NewService(),
		awsssm.NewService(),
		awsec2.NewService(),
		awselb.NewService(),
		awsorganizations.NewService(
			awsorganizations.WithManagementAccount(cfg.ManagementAccountID),
			awsorganizations.WithClosableAccounts(members...),
		),
	)
}

func (r *registry) Get(name string) (core.Destroyer, bool) {
	d, ok := r.byName[name]
	return d, ok
}

func (r *registry) Names() []string {
	return slices.Clone(r.order)
}
