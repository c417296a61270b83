package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dt-pm-tools/confluence-sync/internal/confluence"
	"github.com/dt-pm-tools/confluence-sync/internal/render"
	"github.com/dt-pm-tools/confluence-sync/internal/syncer"
)

var (
	pageOutput       string
	pageCreateSpace  string
	pageCreateTitle  string
	pageCreateParent string
	pageFile         string
	pagePushID       string
	pagePushDryRun   bool
)

var (
	numericIDRe = regexp.MustCompile(`^\d+$`)
	pagePathRe  = regexp.MustCompile(`/pages/(\d+)`)
)

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Confluence page operations",
	Long:  `Inspect a Confluence page, or create and update single pages from Markdown files outside of the configured sync.`,
}

var pageGetCmd = &cobra.Command{
	Use:   "get <page-id-or-url>",
	Short: "Fetch a Confluence page",
	Long: `Fetches a Confluence page by ID or URL and prints its metadata and storage body.

Accepts either a numeric page ID or a Confluence URL:
  confluence-sync page get 85962893
  confluence-sync page get https://your-org.atlassian.net/wiki/spaces/SPACE/pages/85962893/Page+Title
  confluence-sync page get 'https://wiki.example.com/pages/viewpage.action?pageId=85962893'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(false); err != nil {
			return err
		}

		pageID := extractPageID(args[0])
		if pageID == "" {
			return fmt.Errorf("could not extract page ID from %q, expected a numeric ID or Confluence URL", args[0])
		}

		page, err := newConfluenceClient().GetPage(cmd.Context(), pageID)
		if err != nil {
			return fmt.Errorf("fetching page %s: %w", pageID, err)
		}

		out := cmd.OutOrStdout()
		switch pageOutput {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(page)
		case "yaml":
			return yaml.NewEncoder(out).Encode(page)
		case "storage":
			fmt.Fprintln(out, page.Body)
			return nil
		default:
			return fmt.Errorf("unknown --output %q (want storage, yaml or json)", pageOutput)
		}
	},
}

var pageCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new Confluence page",
	Long: `Creates a new Confluence page in the specified space.

Requires --space (space key) and --title. Optionally provide --parent to create
a child page under an existing page (by page ID or URL), and --file to use a
markdown file as the initial body content.

Examples:
  confluence-sync page create --space ENG --title "Decision Log"
  confluence-sync page create --space ENG --title "Decision Log" --parent 85962893 --file body.md`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pageCreateSpace == "" {
			return fmt.Errorf("--space is required")
		}
		if pageCreateTitle == "" {
			return fmt.Errorf("--title is required")
		}
		if err := loadConfig(false); err != nil {
			return err
		}

		body := "<p></p>"
		if pageFile != "" {
			converted, err := readMarkdown(pageFile)
			if err != nil {
				return err
			}
			body = converted.Body
		}

		parentID := ""
		if pageCreateParent != "" {
			parentID = extractPageID(pageCreateParent)
			if parentID == "" {
				return fmt.Errorf("could not extract page ID from --parent %q", pageCreateParent)
			}
		}

		client := newConfluenceClient()
		page, err := client.CreatePage(cmd.Context(), confluence.PageInput{
			SpaceKey: pageCreateSpace,
			Title:    pageCreateTitle,
			ParentID: parentID,
			Body:     body,
		})
		if err != nil {
			return fmt.Errorf("creating page: %w", err)
		}

		fmt.Fprintf(os.Stderr, "Created Confluence page %s: %s\n", page.ID, page.Title)
		fmt.Fprintf(os.Stderr, "URL: %s\n", client.PageURL(page.ID))
		return nil
	},
}

var pagePushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push a markdown file to an existing Confluence page",
	Long: `Converts a markdown file and writes it as the body of an existing page. The
page keeps its title and position; the version is incremented. Nothing is
written when the page already has this content.

Use --dry-run to report the outcome without writing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pageFile == "" {
			return fmt.Errorf("--file (-f) is required")
		}
		pageID := extractPageID(pagePushID)
		if pageID == "" {
			return fmt.Errorf("--page must be a page ID or URL")
		}
		if err := loadConfig(false); err != nil {
			return err
		}

		converted, err := readMarkdown(pageFile)
		if err != nil {
			return err
		}

		engine := syncer.NewEngine(newConfluenceClient(), pagePushDryRun, logger)
		m := syncer.Mapping{Repo: "local", Path: pageFile, Branch: "-", PageID: pageID}
		outcome, page, err := engine.Upsert(cmd.Context(), m, syncer.Desired{Body: converted.Body})
		if err != nil {
			return fmt.Errorf("pushing to page %s: %w", pageID, err)
		}

		prefix := ""
		if pagePushDryRun {
			prefix = "Dry run: "
		}
		fmt.Fprintf(os.Stderr, "%spage %s %q %s (version %d)\n", prefix, page.ID, page.Title, outcome, page.Version)
		return nil
	},
}

func readMarkdown(path string) (render.Converted, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return render.Converted{}, fmt.Errorf("reading file: %w", err)
	}
	converted, err := render.Convert(content)
	if err != nil {
		return render.Converted{}, fmt.Errorf("converting %s: %w", path, err)
	}
	return converted, nil
}

// extractPageID extracts a numeric page ID from either a raw ID or a Confluence URL.
// Supported URL formats:
//
//	https://org.atlassian.net/wiki/spaces/SPACE/pages/12345/Title
//	https://org.atlassian.net/wiki/spaces/SPACE/pages/12345
//	https://wiki.example.com/pages/viewpage.action?pageId=12345
func extractPageID(input string) string {
	input = strings.TrimSpace(input)

	if numericIDRe.MatchString(input) {
		return input
	}

	if u, err := url.Parse(input); err == nil {
		if id := u.Query().Get("pageId"); numericIDRe.MatchString(id) {
			return id
		}
	}

	if match := pagePathRe.FindStringSubmatch(input); match != nil {
		return match[1]
	}

	return ""
}

func init() {
	pageGetCmd.Flags().StringVarP(&pageOutput, "output", "o", "yaml", "output format: yaml, json or storage (body only)")
	pageCreateCmd.Flags().StringVar(&pageCreateSpace, "space", "", "Confluence space key (required)")
	pageCreateCmd.Flags().StringVar(&pageCreateTitle, "title", "", "page title (required)")
	pageCreateCmd.Flags().StringVar(&pageCreateParent, "parent", "", "parent page ID or URL (creates child page)")
	pageCreateCmd.Flags().StringVarP(&pageFile, "file", "f", "", "markdown file for initial body content")
	pagePushCmd.Flags().StringVarP(&pageFile, "file", "f", "", "markdown file to push (required)")
	pagePushCmd.Flags().StringVar(&pagePushID, "page", "", "target page ID or URL (required)")
	pagePushCmd.Flags().BoolVar(&pagePushDryRun, "dry-run", false, "report the outcome without writing")
	pageCmd.AddCommand(pageGetCmd)
	pageCmd.AddCommand(pageCreateCmd)
	pageCmd.AddCommand(pagePushCmd)
	rootCmd.AddCommand(pageCmd)
}
