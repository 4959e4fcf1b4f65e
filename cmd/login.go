package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/catq/internal/domain"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in")

func newLoginCmd(app *app) *cobra.Command {
	var user string
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save the test-taker identity used by take",
		RunE: func(cmd *cobra.Command, _ []string) error {
			identity := domain.Identity(strings.TrimSpace(user))
			if identity.IsZero() {
				return errors.New("--user must not be blank")
			}

			if token != "" {
				if err := app.tokens.Save(cmd.Context(), identity, token); err != nil {
					return err
				}
			}
			if err := app.identities.Save(cmd.Context(), identity); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", identity)
			return err
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Test-taker identity")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token sent to the assessment service for this identity")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved identity and its token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			record, err := app.identities.Load(cmd.Context())
			if errors.Is(err, domain.ErrIdentityNotFound) {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return err
			}
			if err != nil {
				return err
			}

			if err := app.identities.Clear(cmd.Context()); err != nil {
				return err
			}
			if err := app.tokens.Forget(cmd.Context(), record.Identity); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged out %s\n", record.Identity)
			return err
		},
	}
}

func newWhoamiCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			record, err := app.identities.Load(cmd.Context())
			if errors.Is(err, domain.ErrIdentityNotFound) {
				return errNotLoggedIn
			}
			if err != nil {
				return err
			}

			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(struct {
					Identity  domain.Identity `json:"identity"`
					UpdatedAt time.Time       `json:"updated_at"`
				}{Identity: record.Identity, UpdatedAt: record.UpdatedAt})
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (since %s)\n", record.Identity, record.UpdatedAt.Local().Format(time.DateTime))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON output")

	return cmd
}
