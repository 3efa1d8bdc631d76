package cli

import (
	"fmt"

	"github.com/dmitrijs2005/bizdesk/internal/server/auth"
	"github.com/dmitrijs2005/bizdesk/internal/server/mail"
	"github.com/dmitrijs2005/bizdesk/internal/server/services"
	"github.com/spf13/cobra"
)

type superuserOptions struct {
	Username      string
	Email         string
	PasswordStdin bool
}

func newCreateSuperuserCommand(e *env) *cobra.Command {
	opts := &superuserOptions{}

	cmd := &cobra.Command{
		Use:   "create-superuser",
		Short: "Create the activated administrator account",
		Long: `Create an activated account with its default profile and configuration.

The account bypasses permission checks only when its id equals the
configured superuser id (SUPERUSER_ID, default 1), so run this against an
empty database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateSuperuser(cmd, e, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Username, "username", "", "account username")
	cmd.Flags().StringVar(&opts.Email, "email", "", "account email")
	cmd.Flags().BoolVar(&opts.PasswordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runCreateSuperuser(cmd *cobra.Command, e *env, opts *superuserOptions) error {
	var (
		password string
		err      error
	)
	if opts.PasswordStdin {
		password, err = readLine(cmd.InOrStdin())
	} else {
		password, err = promptPassword(cmd.ErrOrStderr())
	}
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	ctx := cmd.Context()
	db, repos, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	log := e.logger(cmd)
	tokens := auth.NewTokenIssuer([]byte(e.cfg.SecretKey), e.cfg.TokenIssuer, e.cfg.AccessTokenValidityDuration)
	gate := services.NewGate(db, repos, tokens, nil, e.opts.SuperuserID, log)
	authService := services.NewAuthService(db, repos, tokens, gate, mail.NewLogSender(log), e.cfg, nil, log)

	u, err := authService.CreateActivated(ctx, opts.Username, opts.Email, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created user %q with id %d\n", u.Username, u.ID)
	if u.ID != e.opts.SuperuserID {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: superuser id is %d; set SUPERUSER_ID=%d to grant this account full access\n",
			e.opts.SuperuserID, u.ID)
	}
	return nil
}
