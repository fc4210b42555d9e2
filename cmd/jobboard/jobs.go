package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kalambet/jobboard/internal/listing"
	"github.com/kalambet/jobboard/internal/storage"
)

// newFilterCache is replaced in tests.
var newFilterCache = func() listing.Cache {
	return listing.NewFileCache(listing.DefaultCachePath())
}

// anonymousUser keys the file cache when no user is configured.
const anonymousUser = "_anonymous"

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Browse and manage job postings",
}

// criteriaFlags maps filter flags to Criteria fields.
var criteriaFlags = []struct {
	name  string
	usage string
	field func(*listing.Criteria) *string
}{
	{"category", "category name", func(c *listing.Criteria) *string { return &c.Category }},
	{"keyword", "substring of title, company or description", func(c *listing.Criteria) *string { return &c.Keyword }},
	{"employment-type", "employment type, e.g. Full-time", func(c *listing.Criteria) *string { return &c.EmploymentType }},
	{"location", "location", func(c *listing.Criteria) *string { return &c.Location }},
	{"min-salary", "minimum annual salary", func(c *listing.Criteria) *string { return &c.MinSalary }},
	{"max-salary", "maximum annual salary", func(c *listing.Criteria) *string { return &c.MaxSalary }},
	{"company", "company name", func(c *listing.Criteria) *string { return &c.Company }},
}

func criteriaFromFlags(flags *pflag.FlagSet) (listing.Criteria, bool) {
	var c listing.Criteria
	changed := false
	for _, f := range criteriaFlags {
		if flags.Changed(f.name) {
			v, _ := flags.GetString(f.name)
			*f.field(&c) = v
			changed = true
		}
	}
	return c, changed
}

func criteriaQuery(c listing.Criteria) url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("category", c.Category)
	set("keyword", c.Keyword)
	set("employment_type", c.EmploymentType)
	set("location", c.Location)
	set("min_salary", c.MinSalary)
	set("max_salary", c.MaxSalary)
	set("company", c.Company)
	return q
}

// resolveCriteria applies the last-filter rules: --reset forgets the saved
// filter, explicit flags replace it, and no flags restore it.
func resolveCriteria(cmd *cobra.Command, cache listing.Cache, userID string) listing.Criteria {
	ctx := cmd.Context()
	if userID == "" {
		userID = anonymousUser
	}

	reset, _ := cmd.Flags().GetBool("reset")
	if reset {
		if err := cache.Clear(ctx, userID); err != nil {
			printWarning("could not clear saved filter: %v", err)
		}
	}

	c, changed := criteriaFromFlags(cmd.Flags())
	switch {
	case changed:
		c = c.Normalize(listing.DefaultCategories)
		if err := cache.Save(ctx, userID, c); err != nil {
			printWarning("could not save filter: %v", err)
		}
	case !reset:
		saved, ok, err := cache.Load(ctx, userID)
		if err != nil {
			printWarning("could not read saved filter: %v", err)
		}
		if ok && !saved.IsEmpty() {
			printStep("Using last filter (--reset to clear)")
			c = saved
		}
	}
	return c
}

func printPostings(postings []storage.Posting) {
	if len(postings) == 0 {
		fmt.Println("No postings found.")
		return
	}
	for _, p := range postings {
		fmt.Printf("%s  %s  %s, %s  %s\n",
			colorize(colorCyan, p.ID),
			colorize(colorBold, truncate(p.Title, maxTitleWidth)),
			p.Company,
			p.Location,
			payLabel(p),
		)
	}
}

const maxTitleWidth = 40

// payLabel shows whichever compensation a posting specifies.
func payLabel(p storage.Posting) string {
	switch {
	case p.Salary != "" && p.Salary != "0":
		return p.Salary
	case p.Hourly != "" && p.Hourly != "0":
		return p.Hourly + "/hr"
	}
	return "pay not listed"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List postings, optionally filtered",
	Long: `List postings, optionally filtered.

Filters are remembered: running "jobs list" without filter flags reuses the
last filter you applied. Use --reset to go back to the full list.

Examples:
  jobboard jobs list --category Healthcare --location Boston
  jobboard jobs list --min-salary 80000 --keyword engineer
  jobboard jobs list --reset`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		c := resolveCriteria(cmd, newFilterCache(), client.userID)
		path := "/postings"
		if q := criteriaQuery(c); len(q) > 0 {
			path += "?" + q.Encode()
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var postings []storage.Posting
		if err := decodeJSON(resp, &postings); err != nil {
			return err
		}
		printPostings(postings)
		return nil
	},
}

var jobsMineCmd = &cobra.Command{
	Use:   "mine",
	Short: "List postings you created",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/postings/mine")
		if err != nil {
			return err
		}
		var postings []storage.Posting
		if err := decodeJSON(resp, &postings); err != nil {
			return err
		}
		printPostings(postings)
		return nil
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a posting as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/postings/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var p storage.Posting
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		return printJSON(p)
	},
}

// postingFlags are shared by post and edit.
var postingFlags = []struct{ name, usage string }{
	{"title", "job title"},
	{"company", "company name"},
	{"description", "description"},
	{"responsibilities", "responsibilities"},
	{"salary", "annual salary"},
	{"hourly", "hourly rate"},
	{"employment-type", "employment type (default Full-time)"},
	{"location", "location"},
	{"benefits", "benefits"},
	{"category", "category name"},
	{"skills", "comma-separated skills"},
}

// postingBody collects the changed posting flags into a request body,
// starting from base.
func postingBody(flags *pflag.FlagSet, base map[string]any) map[string]any {
	body := base
	if body == nil {
		body = map[string]any{}
	}
	for _, f := range postingFlags {
		if !flags.Changed(f.name) {
			continue
		}
		v, _ := flags.GetString(f.name)
		key := strings.ReplaceAll(f.name, "-", "_")
		if key == "skills" {
			body[key] = splitList(v)
			continue
		}
		body[key] = v
	}
	return body
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

var jobsPostCmd = &cobra.Command{
	Use:   "post",
	Short: "Create a posting",
	Long: `Create a posting.

Exactly one of --salary or --hourly is required.

Examples:
  jobboard jobs post --title "Nursing" --company Mercy --description "Night shift" \
    --location Boston --category Healthcare --hourly 48
  jobboard jobs post --file posting.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var base map[string]any
		if file, _ := cmd.Flags().GetString("file"); file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			if err := json.Unmarshal(data, &base); err != nil {
				return fmt.Errorf("invalid JSON in %s: %w", file, err)
			}
		}
		body := postingBody(cmd.Flags(), base)
		if len(body) == 0 {
			return fmt.Errorf("posting fields or --file are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/postings", body)
		if err != nil {
			return err
		}
		var p storage.Posting
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		printSuccess("Posted %s (%s)", p.Title, p.ID)
		return nil
	},
}

var jobsEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Update a posting you created",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := "/postings/" + url.PathEscape(args[0])

		// Fetch first so unchanged compensation is not reset to 0.
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var current map[string]any
		if err := decodeJSON(resp, &current); err != nil {
			return err
		}
		for _, k := range []string{"id", "author_id", "profile_id", "created_at"} {
			delete(current, k)
		}

		resp, err = client.put(cmd.Context(), path, postingBody(cmd.Flags(), current))
		if err != nil {
			return err
		}
		var p storage.Posting
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		printSuccess("Updated %s", p.ID)
		return nil
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a posting you created",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/postings/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Deleted %s", args[0])
		return nil
	},
}

var jobsApplyCmd = &cobra.Command{
	Use:   "apply <id>",
	Short: "Send your profile card to the posting's author",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/postings/"+url.PathEscape(args[0])+"/apply", nil)
		if err != nil {
			return err
		}
		var m storage.Message
		if err := decodeJSON(resp, &m); err != nil {
			return err
		}
		printSuccess("Applied to %s", m.JobTitle)
		return nil
	},
}

func init() {
	for _, f := range criteriaFlags {
		jobsListCmd.Flags().String(f.name, "", f.usage)
	}
	jobsListCmd.Flags().Bool("reset", false, "clear the saved filter")

	for _, f := range postingFlags {
		jobsPostCmd.Flags().String(f.name, "", f.usage)
		jobsEditCmd.Flags().String(f.name, "", f.usage)
	}
	jobsPostCmd.Flags().String("file", "", "read the posting from a JSON file")

	jobsCmd.AddCommand(jobsListCmd, jobsMineCmd, jobsShowCmd, jobsPostCmd, jobsEditCmd, jobsDeleteCmd, jobsApplyCmd)
}
