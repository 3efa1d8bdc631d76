package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/bizdesk/internal/server/cache"
	"github.com/dmitrijs2005/bizdesk/internal/server/services"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// SeedFile is the permissions.yaml layout:
//
//	global:
//	  - listStatuses
//	users:
//	  - user_id: 3
//	    sectors: [addClient, getClient]
type SeedFile struct {
	Global []string    `yaml:"global"`
	Users  []UserGrant `yaml:"users"`
}

type UserGrant struct {
	UserID  int64    `yaml:"user_id"`
	Sectors []string `yaml:"sectors"`
}

// ParseSeedFile decodes a seed file into grants, global ones first.
func ParseSeedFile(data []byte) ([]services.Grant, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	var out []services.Grant
	for _, s := range f.Global {
		if s = strings.TrimSpace(s); s == "" {
			return nil, fmt.Errorf("empty sector in global list")
		}
		out = append(out, services.Grant{Sector: s})
	}
	for _, u := range f.Users {
		if u.UserID <= 0 {
			return nil, fmt.Errorf("invalid user_id %d", u.UserID)
		}
		for _, s := range u.Sectors {
			if s = strings.TrimSpace(s); s == "" {
				return nil, fmt.Errorf("empty sector for user %d", u.UserID)
			}
			id := u.UserID
			out = append(out, services.Grant{UserID: &id, Sector: s})
		}
	}
	return out, nil
}

func newSeedPermissionsCommand(e *env) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "seed-permissions",
		Short: "Grant the permissions listed in a YAML file",
		Long: `Grant every permission of the seed file that is not granted yet.
Existing grants are left alone, so the command can be re-run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			grants, err := ParseSeedFile(data)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, repos, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			log := e.logger(cmd)
			rc, err := e.permissionCache(ctx)
			if err != nil {
				return err
			}
			var pc cache.PermissionCache
			if rc != nil {
				defer rc.Close()
				pc = rc
			}
			gate := services.NewGate(db, repos, nil, pc, e.opts.SuperuserID, log)
			added, err := services.NewPermissionService(db, repos, gate, log).Seed(ctx, grants, e.opts.SuperuserID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d permissions granted\n", added, len(grants))
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "permissions.yaml", "seed file")
	return cmd
}
