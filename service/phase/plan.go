// Package phase holds the fixed destruction order and the scheduler that
// walks it.
package phase

import (
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

// Phase is one stage of the destruction order. Steps run one after another;
// every step finishes in every account before the next step starts.
type Phase struct {
	Number int
	Name   string
	Steps  [][]string
	// ManagementOnly phases run in the organization's management account only.
	ManagementOnly bool
}

const (
	ValidationNumber = 10
	ValidationName   = "validation"
	SweepNumber      = 11
	SweepName        = "deferred bucket sweep"
)

// Plan is the destruction order. It is fixed and linear: no phase is run
// twice and none is skipped because an earlier one had failures.
var Plan = []Phase{
	{Number: 1, Name: "cross-account & state", Steps: [][]string{{awsdynamodb.Name}}},
	{Number: 2, Name: "edge", Steps: [][]string{{awscloudfront.Name, awswafv2.Name}}},
	// Trails stop writing before any log bucket is emptied.
	{Number: 3, Name: "storage & logging", Steps: [][]string{{awscloudtrail.Name}, {awslogs.Name, awss3.Name}}},
	{Number: 4, Name: "compute & database", Steps: [][]string{{awslambda.Name, awsrds.Name, awsalarms.Name, awssns.Name}}},
	{Number: 5, Name: "dns & network", Steps: [][]string{{awsroute53.Name}}},
	{Number: 6, Name: "identity & kms", Steps: [][]string{{awsiam.Name, awskms.Name}}},
	{Number: 7, Name: "cost & config", Steps: [][]string{{awsbudgets.Name, awsssm.Name}}},
	{Number: 8, Name: "orphan sweep", Steps: [][]string{{awsec2.Name, awselb.Name}}},
	{Number: 9, Name: "organization", Steps: [][]string{{awsorganizations.Name}}, ManagementOnly: true},
}

// Names lists every destroyer key the plan refers to, in execution order.
func Names(plan []Phase) []string {
	var names []string
	for _, p := range plan {
		for _, step := range p.Steps {
			names = append(names, step...)
		}
	}
	return names
}
