package cmd

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/elysium-hub/elysium/pkg/cerberus"
	"github.com/elysium-hub/elysium/pkg/config"
	"github.com/elysium-hub/elysium/pkg/themis"
)

var whoamiToken string

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Resolve a token against the hub and describe its scopes",
	RunE:  runWhoami,
}

func init() {
	whoamiCmd.Flags().StringVar(&whoamiToken, "identify-token", "", "Token to identify (prompted when omitted)")
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if apiToken != "" {
		cfg.APIToken = apiToken
	}

	token := whoamiToken
	if token == "" {
		fmt.Fprint(os.Stderr, "Token: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}
	if token == "" {
		return fmt.Errorf("no token given")
	}

	client, err := cerberus.NewHubAuth(cerberus.Config{
		APIURL:       cfg.APIURL,
		APIToken:     cfg.APIToken,
		CertFile:     coalesce(certFile, cfg.SSLCertFile),
		KeyFile:      coalesce(keyFile, cfg.SSLKeyFile),
		ClientCAFile: coalesce(caFile, cfg.SSLClientCAFile),
	}, nil, nil, nil)
	if err != nil {
		return err
	}

	model, err := client.UserForToken(cmd.Context(), token, "")
	if err != nil {
		return err
	}
	if model == nil {
		return fmt.Errorf("token not recognized by the hub")
	}

	fmt.Printf("%s: %s\n", model.Kind, model.Name)
	if model.Admin {
		fmt.Println("admin: true")
	}
	if len(model.Groups) > 0 {
		fmt.Printf("groups: %s\n", strings.Join(model.Groups, ", "))
	}
	if len(model.Scopes) == 0 {
		return nil
	}

	engine := themis.NewEngine(themis.NewDefaultRegistry(), nil)
	descriptions := engine.DescribeRawScopes(model.Scopes, model.Name)
	fmt.Println("scopes:")
	for _, d := range descriptions {
		line := "  " + d.Scope
		if d.Description != "" {
			line += " - " + d.Description
		}
		if d.Filter != "" {
			line += " (" + d.Filter + ")"
		}
		fmt.Println(line)
	}
	return nil
}
