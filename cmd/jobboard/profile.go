package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kalambet/jobboard/internal/config"
	"github.com/kalambet/jobboard/internal/profile"
)

// Test seams.
var (
	readPassword   = term.ReadPassword
	rememberUserID = func(id string) error { return config.SetKey("auth.user", id) }
)

// passwordFlag returns --password, prompting on the terminal when unset.
func passwordFlag(cmd *cobra.Command) (string, error) {
	if pw, _ := cmd.Flags().GetString("password"); pw != "" {
		return pw, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your profile",
}

var profileSignupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Register the current user",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := profile.SignupRequest{}
		req.Email, _ = cmd.Flags().GetString("email")
		req.FirstName, _ = cmd.Flags().GetString("first-name")
		req.LastName, _ = cmd.Flags().GetString("last-name")
		req.Phone, _ = cmd.Flags().GetString("phone")

		var err error
		if req.Password, err = passwordFlag(cmd); err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/signup", req)
		if err != nil {
			return err
		}
		var p profile.UserProfile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		printSuccess("Signed up %s (profile %s)", p.FullName(), p.ProfileID)
		return nil
	},
}

var profileLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and remember the user for later commands",
	Long: `Log in with the email and password given at signup.

The user ID is saved as auth.user, so later commands no longer need --user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := profile.LoginRequest{}
		req.Email, _ = cmd.Flags().GetString("email")
		if req.Email == "" {
			return fmt.Errorf("--email is required")
		}
		var err error
		if req.Password, err = passwordFlag(cmd); err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/login", req)
		if err != nil {
			return err
		}
		var p profile.UserProfile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		if err := rememberUserID(p.UserID); err != nil {
			return fmt.Errorf("saving user: %w", err)
		}
		printSuccess("Logged in as %s (%s)", p.FullName(), p.UserID)
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/profile")
		if err != nil {
			return err
		}
		var p any
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		return printJSON(p)
	},
}

// listFields hold comma-separated values on the command line.
var listFields = map[string]bool{
	"skills":         true,
	"certifications": true,
	"links":          true,
	"licenses":       true,
}

var profileSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a profile field",
	Long: `Set a profile field.

List fields (skills, certifications, links, licenses) take a
comma-separated value.

Examples:
  jobboard profile set bio "Night-shift RN, 8 years"
  jobboard profile set skills "triage,ICU,EPIC"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/profile")
		if err != nil {
			return err
		}
		var fields map[string]any
		if err := decodeJSON(resp, &fields); err != nil {
			return err
		}

		if listFields[key] {
			fields[key] = splitList(value)
		} else {
			fields[key] = value
		}

		resp, err = client.put(cmd.Context(), "/profile", fields)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var profileEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open your profile JSON in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/profile")
		if err != nil {
			return err
		}
		var p any
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}

		tmpFile, err := os.CreateTemp("", "jobboard-profile-*.json")
		if err != nil {
			return fmt.Errorf("creating temp file: %w", err)
		}
		tmpPath := tmpFile.Name()
		defer os.Remove(tmpPath)

		if _, err := tmpFile.Write(data); err != nil {
			tmpFile.Close()
			return err
		}
		tmpFile.Close()

		editorCmd := exec.Command(editor, tmpPath)
		editorCmd.Stdin = os.Stdin
		editorCmd.Stdout = os.Stdout
		editorCmd.Stderr = os.Stderr
		if err := editorCmd.Run(); err != nil {
			return fmt.Errorf("editor exited with error: %w", err)
		}

		edited, err := os.ReadFile(tmpPath)
		if err != nil {
			return err
		}
		var fields map[string]any
		if err := json.Unmarshal(edited, &fields); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}

		resp, err = client.put(cmd.Context(), "/profile", fields)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Profile updated")
		return nil
	},
}

var profileImportResumeCmd = &cobra.Command{
	Use:   "import-resume <file.pdf>",
	Short: "Attach the text of a PDF résumé to your profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			printWarning("%s does not look like a PDF", path)
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() > profile.MaxResumeSize {
			return fmt.Errorf("%s is larger than %d MB", path, profile.MaxResumeSize>>20)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.upload(cmd.Context(), "/profile/resume", "application/pdf", data)
		if err != nil {
			return err
		}
		var result struct {
			Chars int `json:"chars"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Imported %d characters from %s", result.Chars, path)
		return nil
	},
}

func init() {
	profileSignupCmd.Flags().String("email", "", "email address")
	profileSignupCmd.Flags().String("password", "", "password (prompted when omitted)")
	profileSignupCmd.Flags().String("first-name", "", "first name")
	profileSignupCmd.Flags().String("last-name", "", "last name")
	profileSignupCmd.Flags().String("phone", "", "10-digit phone number")

	profileLoginCmd.Flags().String("email", "", "email address")
	profileLoginCmd.Flags().String("password", "", "password (prompted when omitted)")

	profileCmd.AddCommand(profileSignupCmd, profileLoginCmd, profileShowCmd, profileSetCmd, profileEditCmd, profileImportResumeCmd)
}
