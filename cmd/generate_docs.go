package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/teemow/gapi/internal/google"
	"github.com/teemow/gapi/internal/instrumentation"
	"github.com/teemow/gapi/internal/server"
	"github.com/teemow/gapi/internal/tools/calendar_tools"
	"github.com/teemow/gapi/internal/tools/common"
	"github.com/teemow/gapi/internal/tools/tasks_tools"
)

var serviceTitles = map[string]string{
	instrumentation.ServiceCalendar: "Google Calendar Tools",
	instrumentation.ServiceTasks:    "Google Tasks Tools",
}

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for all available MCP tools.
This command introspects the registered tools and outputs their documentation
in markdown format, ensuring the documentation is always accurate and in sync
with the actual tool implementations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			markdown, err := buildToolsMarkdown(cmd.Context())
			if err != nil {
				return err
			}
			if outputFile == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), markdown)
				return err
			}
			if err := os.WriteFile(outputFile, []byte(markdown), 0o644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Documentation written to: %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

// buildToolsMarkdown renders every tool, including the write tools. No
// credentials are needed; handlers are never called.
func buildToolsMarkdown(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sc, err := server.NewServerContext(ctx, google.NewFileTokenProvider(google.NewStore(os.TempDir())))
	if err != nil {
		return "", fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		_ = sc.Shutdown()
	}()

	tools := append(calendar_tools.Tools(sc), tasks_tools.Tools(sc)...)
	return generateToolsMarkdown(tools), nil
}

func generateToolsMarkdown(tools []common.Tool) string {
	var sb strings.Builder

	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("This document provides a complete reference of all tools available when running gapi as an MCP server.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the tool definitions.\n\n")

	byService := lo.GroupBy(tools, func(t common.Tool) string { return t.Service })
	services := lo.Keys(byService)
	sort.Slice(services, func(i, j int) bool {
		return categoryTitle(services[i]) < categoryTitle(services[j])
	})

	sb.WriteString("## Table of Contents\n\n")
	for _, service := range services {
		title := categoryTitle(service)
		anchor := strings.ToLower(strings.ReplaceAll(title, " ", "-"))
		fmt.Fprintf(&sb, "- [%s](#%s)\n", title, anchor)
	}
	sb.WriteString("\n")

	sb.WriteString("## Multi-Account Support\n\n")
	sb.WriteString("All tools accept an optional `account` parameter selecting the stored Google account:\n\n")
	sb.WriteString("- **Default behavior:** If `account` is not specified, the server's default account (`default` unless `--account` is set) is used\n")
	sb.WriteString("- **Multiple accounts:** Add accounts with `gapi auth login --account NAME`\n")
	sb.WriteString("- **HTTP transport:** The authenticated Google user always takes precedence\n\n")

	sb.WriteString("## Read-Only Mode\n\n")
	sb.WriteString("Tools marked **write** are not registered when the server runs with `--read-only`.\n\n")

	for _, service := range services {
		serviceTools := byService[service]
		sort.Slice(serviceTools, func(i, j int) bool {
			return serviceTools[i].Tool.Name < serviceTools[j].Tool.Name
		})

		fmt.Fprintf(&sb, "## %s\n\n", categoryTitle(service))
		for _, t := range serviceTools {
			sb.WriteString(generateToolMarkdown(t))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func categoryTitle(service string) string {
	if title, ok := serviceTitles[service]; ok {
		return title
	}
	return "Other"
}

func generateToolMarkdown(t common.Tool) string {
	var sb strings.Builder
	tool := t.Tool

	fmt.Fprintf(&sb, "### %s\n\n", tool.Name)
	if tool.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", tool.Description)
	}

	var traits []string
	if t.Write {
		traits = append(traits, "write")
	} else {
		traits = append(traits, "read-only")
	}
	if hint := tool.Annotations.DestructiveHint; hint != nil && *hint {
		traits = append(traits, "destructive")
	}
	fmt.Fprintf(&sb, "*%s*\n\n", strings.Join(traits, ", "))

	if len(tool.InputSchema.Properties) > 0 {
		sb.WriteString("**Arguments:**\n")

		names := lo.Keys(tool.InputSchema.Properties)
		sort.Strings(names)

		for _, name := range names {
			prop, ok := tool.InputSchema.Properties[name].(map[string]any)
			if !ok {
				continue
			}
			required := lo.Ternary(lo.Contains(tool.InputSchema.Required, name), "required", "optional")

			fmt.Fprintf(&sb, "- `%s` (%s, %s): ", name, getPropertyType(prop), required)
			if desc, ok := prop["description"].(string); ok {
				sb.WriteString(desc)
			} else {
				fmt.Fprintf(&sb, "%s parameter", getPropertyType(prop))
			}
			if def, ok := prop["default"]; ok {
				fmt.Fprintf(&sb, " Default: `%v`.", def)
			}
			if enum, ok := prop["enum"].([]string); ok && len(enum) > 0 {
				fmt.Fprintf(&sb, " One of: %s.", strings.Join(lo.Map(enum, func(v string, _ int) string { return "`" + v + "`" }), ", "))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func getPropertyType(prop map[string]any) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}
