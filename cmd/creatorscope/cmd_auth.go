package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/creatorscope/pkg/api"
	"github.com/codeGROOVE-dev/creatorscope/pkg/creator"
	"github.com/codeGROOVE-dev/creatorscope/pkg/session"
)

// passwordEnv supplies the password when --password is omitted.
const passwordEnv = "CREATORSCOPE_PASSWORD"

var (
	loginEmail       string
	loginPassword    string
	loginRole        string
	loginFromBrowser bool
)

// loginCmd authenticates and stores the session token.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session token",
	Long: `Log in with email and password, or import the token the web dashboard
left in a local browser with --from-browser.

The password may also be given through CREATORSCOPE_PASSWORD.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cli.sess.Logout(contextOf(cmd)); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		u, ok := cli.sess.User()
		if !ok {
			return session.ErrNotLoggedIn
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), u)
		}
		printUser(cmd.OutOrStdout(), u)
		return nil
	},
}

var reg struct {
	email, password, role      string
	name, niche, bio           string
	instagram, youtube         string
	company, industry, website string
}

// registerCmd creates a creator or brand account.
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a creator or brand account",
	Long: `Create an account. Creators give --name and optionally --niche (comma
separated), --bio, --instagram and --youtube. Brands give --company and
--industry and optionally --website.`,
	Args: cobra.NoArgs,
	RunE: runRegister,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (or set "+passwordEnv+")")
	loginCmd.Flags().StringVar(&loginRole, "role", string(creator.RoleCreator), "account type: creator or brand")
	loginCmd.Flags().BoolVar(&loginFromBrowser, "from-browser", false, "import the session token from local browser cookies")

	f := registerCmd.Flags()
	f.StringVar(&reg.email, "email", "", "account email (required)")
	f.StringVar(&reg.password, "password", "", "account password (or set "+passwordEnv+")")
	f.StringVar(&reg.role, "role", string(creator.RoleCreator), "account type: creator or brand")
	f.StringVar(&reg.name, "name", "", "creator display name")
	f.StringVar(&reg.niche, "niche", "", "creator niches, comma separated")
	f.StringVar(&reg.bio, "bio", "", "creator bio")
	f.StringVar(&reg.instagram, "instagram", "", "creator Instagram URL")
	f.StringVar(&reg.youtube, "youtube", "", "creator YouTube URL")
	f.StringVar(&reg.company, "company", "", "brand company name")
	f.StringVar(&reg.industry, "industry", "", "brand industry")
	f.StringVar(&reg.website, "website", "", "brand website")
	registerCmd.MarkFlagRequired("email") //nolint:errcheck,gosec // flag is defined above
}

func parseRole(s string) (creator.Role, error) {
	switch r := creator.Role(strings.ToLower(strings.TrimSpace(s))); r {
	case creator.RoleCreator, creator.RoleBrand:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q (want creator or brand)", s)
	}
}

func password(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(passwordEnv)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	ctx := contextOf(cmd)
	role, err := parseRole(loginRole)
	if err != nil {
		return err
	}

	if loginFromBrowser {
		tok, err := session.ChainSources(ctx, cli.apiHost(), session.EnvSource{}, session.NewBrowserSource(cli.logger))
		if err != nil {
			return err
		}
		if tok == "" {
			return fmt.Errorf("no %s cookie found for %s in local browsers", session.KeyToken, cli.apiHost())
		}
		if err := cli.sess.Login(ctx, tok, creator.SessionUser{Role: role}); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Imported session token from browser.")
		return nil
	}

	pw := password(loginPassword)
	if loginEmail == "" || pw == "" {
		return errors.New("--email and --password are required (or use --from-browser)")
	}
	res, err := cli.client.Login(ctx, loginEmail, pw, role)
	if err != nil {
		return describe(err)
	}
	if err := cli.sess.Login(ctx, res.Token, res.User); err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), res.User)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s).\n", res.User.Email, res.User.Role)
	return nil
}

func runRegister(cmd *cobra.Command, _ []string) error {
	role, err := parseRole(reg.role)
	if err != nil {
		return err
	}
	r := &api.Registration{
		Email:    reg.email,
		Password: password(reg.password),
		Role:     role,
	}
	switch role {
	case creator.RoleCreator:
		r.Name = reg.name
		r.Niche = api.ParseNiche(reg.niche)
		r.Bio = reg.bio
		if reg.instagram != "" || reg.youtube != "" {
			r.SocialLinks = &api.SocialLinks{Instagram: reg.instagram, YouTube: reg.youtube}
		}
	case creator.RoleBrand:
		r.CompanyName = reg.company
		r.Industry = reg.industry
		r.Website = reg.website
	}

	msg, err := cli.client.Register(contextOf(cmd), r)
	if err != nil {
		return describe(err)
	}
	if msg == "" {
		msg = "Account created."
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

// describe replaces a transport error with the backend's own message when
// it sent one.
func describe(err error) error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if msg := apiErr.Message(); msg != "" {
			return fmt.Errorf("%s: %s", apiErr.Op, msg)
		}
	}
	return err
}
