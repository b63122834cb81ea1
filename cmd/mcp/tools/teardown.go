// Package tools exposes the read-only side of the engine over MCP. Nothing
// registered here can destroy a resource.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elC0mpa/aws-teardown/cmd/mcp/response"
	"github.com/elC0mpa/aws-teardown/model"
	awsconfig "github.com/elC0mpa/aws-teardown/service/aws/config"
	awscostexplorer "github.com/elC0mpa/aws-teardown/service/aws/costexplorer"
	awssts "github.com/elC0mpa/aws-teardown/service/aws/sts"
	"github.com/elC0mpa/aws-teardown/service/confirm"
	"github.com/elC0mpa/aws-teardown/service/lazydelete"
	"github.com/elC0mpa/aws-teardown/service/orchestrator"
	"github.com/elC0mpa/aws-teardown/service/phase"
	"github.com/elC0mpa/aws-teardown/service/report"
	"github.com/elC0mpa/aws-teardown/service/settings"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Options locate the config and the AWS credentials the tools run with.
type Options struct {
	ConfigPath string
	Region     string
	Profile    string
}

// RegisterTeardownTools registers every tool with the MCP server
func RegisterTeardownTools(s *server.MCPServer, opts Options) {
	s.AddTool(
		mcp.NewTool("teardown_get_account_info",
			mcp.WithDescription("Get the AWS identity the teardown engine runs as"),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		makeAccountInfoHandler(opts),
	)

	s.AddTool(
		mcp.NewTool("teardown_get_last_month_costs",
			mcp.WithDescription("Get last month's AWS costs broken down by service, the basis of the savings estimate"),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		makeLastMonthCostsHandler(opts),
	)

	s.AddTool(
		mcp.NewTool("teardown_plan",
			mcp.WithDescription("Dry run: list every resource a destroy run would remove, without changing anything"),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("scope",
				mcp.Description("Preserve set to apply"),
				mcp.Enum(string(model.ScopeFull), string(model.ScopeEnvironment)),
			),
			mcp.WithString("environment",
				mcp.Description("With scope environment, only plan accounts of this environment"),
			),
			mcp.WithString("account_filter",
				mcp.Description("Comma separated account ids to restrict the plan to"),
			),
		),
		makePlanHandler(opts),
	)

	s.AddTool(
		mcp.NewTool("teardown_validate",
			mcp.WithDescription("Scan every configured account and region for project resources that are still present"),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("account_filter",
				mcp.Description("Comma separated account ids to restrict the scan to"),
			),
		),
		makeValidateHandler(opts),
	)

	s.AddTool(
		mcp.NewTool("teardown_list_lazy_deletes",
			mcp.WithDescription("List resources whose deletion was deferred to a later run or to AWS itself"),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("status",
				mcp.Description("Only entries in this status"),
				mcp.Enum(string(model.LazyDeletePending), string(model.LazyDeleteCompleted)),
			),
		),
		makeLazyDeletesHandler(opts),
	)
}

func makeAccountInfoHandler(opts Options) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		awsCfg, err := awsconfig.NewService().GetAWSCfg(ctx, opts.Region, opts.Profile)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to configure AWS: %v", err)), nil
		}

		info, err := awssts.NewService(awsCfg, awssts.SessionConfig{}).GetAccountInfo(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get account info: %v", err)), nil
		}

		return jsonResult(response.ConvertAccountInfo(info))
	}
}

func makeLastMonthCostsHandler(opts Options) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		awsCfg, err := awsconfig.NewService().GetAWSCfg(ctx, "us-east-1", opts.Profile)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to configure AWS: %v", err)), nil
		}

		costData, err := awscostexplorer.NewService(awsCfg).GetLastMonthCostsByService(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get costs: %v", err)), nil
		}

		return jsonResult(response.ConvertCostInfo(costData))
	}
}

func makePlanHandler(opts Options) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		flags := model.Flags{
			Command:       model.CommandPlan,
			DryRun:        true,
			Scope:         request.GetString("scope", string(model.ScopeFull)),
			Environment:   request.GetString("environment", ""),
			AccountFilter: splitList(request.GetString("account_filter", "")),
			Region:        opts.Region,
		}

		out, err := orchestrate(ctx, opts, flags)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Plan failed: %v", err)), nil
		}

		return jsonResult(response.ConvertPlan(out.Report, out.Paths.JSON))
	}
}

func makeValidateHandler(opts Options) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		flags := model.Flags{
			Command:       model.CommandValidate,
			Scope:         string(model.ScopeFull),
			AccountFilter: splitList(request.GetString("account_filter", "")),
			Region:        opts.Region,
		}

		out, err := orchestrate(ctx, opts, flags)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Validation failed: %v", err)), nil
		}

		return jsonResult(response.ConvertValidation(out.Report.Validation))
	}
}

func makeLazyDeletesHandler(opts Options) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cfg, err := settings.NewService().Load(opts.ConfigPath)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to load config: %v", err)), nil
		}

		entries, err := lazydelete.NewFile(cfg.Output.TrackingFile).List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to read tracking file: %v", err)), nil
		}

		return jsonResult(response.ConvertLazyDeletes(entries, request.GetString("status", "")))
	}
}

// orchestrate runs a read-only workflow. The confirmer reads from an empty
// input so that a destroy command could never be confirmed from here.
func orchestrate(ctx context.Context, opts Options, flags model.Flags) (*orchestrator.Outcome, error) {
	cfg, err := settings.NewService().Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	awsCfg, err := awsconfig.NewService().GetAWSCfg(ctx, opts.Region, opts.Profile)
	if err != nil {
		return nil, fmt.Errorf("configuring AWS: %w", err)
	}

	runID := uuid.NewString()
	sessions := awssts.NewService(awsCfg, awssts.SessionConfig{
		Project:             cfg.Project,
		RoleName:            cfg.CrossAccountRoleName,
		ExternalID:          cfg.ExternalID,
		RunID:               runID,
		Duration:            cfg.SessionDuration,
		CrossAccountEnabled: true,
	})

	svc := orchestrator.NewService(
		cfg,
		sessions,
		phase.NewDefaultRegistry(cfg),
		lazydelete.NewFile(cfg.Output.TrackingFile),
		nil,
		report.NewService(cfg.Output.Dir),
		confirm.NewService(strings.NewReader(""), io.Discard),
		io.Discard,
	)
	return svc.Orchestrate(ctx, flags, runID)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
