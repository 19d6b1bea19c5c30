package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	lynkr "github.com/lynkr-ai/lynkr-go-sdk"
	"github.com/lynkr-ai/lynkr-go-sdk/api"
	"github.com/lynkr-ai/lynkr-go-sdk/config"
	internalconfig "github.com/lynkr-ai/lynkr-go-sdk/internal/config"
	"github.com/lynkr-ai/lynkr-go-sdk/internal/llm"
	"github.com/lynkr-ai/lynkr-go-sdk/keys"
	"github.com/lynkr-ai/lynkr-go-sdk/mcp"
)

func newSchemaCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <request>",
		Short: "Fetch the field schema for a natural-language request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.lynkrClient()
			if err != nil {
				return err
			}

			refID, s, err := client.GetSchema(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"ref_id":           refID,
				"service":          client.Context().Metadata.Service(),
				"required_fields":  s.RequiredFields(),
				"optional_fields":  s.OptionalFields(),
				"sensitive_fields": s.SensitiveFields(),
				"schema":           s.ToSerializable(),
			})
		},
	}
}

func newExecuteCommand(a *app) *cobra.Command {
	var (
		data       string
		refID      string
		noAutoFill bool
	)

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Execute an action for a reference id",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseData(data)
			if err != nil {
				return err
			}
			client, err := a.lynkrClient()
			if err != nil {
				return err
			}

			opts := []lynkr.ExecuteOption{lynkr.WithRefID(refID)}
			if noAutoFill {
				opts = append(opts, lynkr.WithoutAutoFill())
			}
			resp, err := client.ExecuteAction(cmd.Context(), fields, opts...)
			if err != nil {
				return err
			}
			if msg, ok := resp["error"].(string); ok && msg == lynkr.ErrMissingRefID {
				return errors.New(msg)
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "Field values as a JSON object")
	cmd.Flags().StringVar(&refID, "ref-id", "", "Reference id returned by the schema command")
	cmd.Flags().BoolVar(&noAutoFill, "no-autofill", false, "Do not fill key fields from stored keys")

	return cmd
}

func newRunCommand(a *app) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "run <request>",
		Short: "Fetch a schema, validate the data against it and execute",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseData(data)
			if err != nil {
				return err
			}
			client, err := a.lynkrClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			refID, s, err := client.GetSchema(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Reference ID: %s\n", refID)
			fmt.Fprintf(out, "Required fields: %s\n", strings.Join(s.RequiredFields(), ", "))

			// validate what will actually be sent, stored keys included
			service := client.Context().Metadata.Service()
			candidate := client.Keys().MatchKeysToSchema(fields, append(s.RequiredFields(), s.SensitiveFields()...), keys.WithService(service))
			if issues := s.Validate(candidate); len(issues) > 0 {
				fmt.Fprintln(out, "Validation failed:")
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
				return fmt.Errorf("%d validation issue(s)", len(issues))
			}

			resp, err := client.ExecuteAction(cmd.Context(), fields)
			if err != nil {
				return err
			}
			return printJSON(out, resp)
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "Field values as a JSON object")

	return cmd
}

func newKeysCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List configured service keys, masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.keys.Len() == 0 {
				fmt.Fprintln(out, "No API keys configured.")
				return nil
			}
			masked := a.keys.ListMasked()
			for _, service := range a.keys.Services() {
				line := fmt.Sprintf("%s: %s", service, masked[service])
				if aliases := a.keys.FieldMappings(service); len(aliases) > 0 {
					line += fmt.Sprintf(" (fields: %s)", strings.Join(aliases, ", "))
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func newMCPCommand(a *app) *cobra.Command {
	var transport, addr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the Lynkr tools over MCP",
		Long: `Serve get_schema, execute_action and list_api_keys as MCP tools.

The stdio transport suits MCP client configurations such as:
  {
    "mcpServers": {
      "lynkr": {
        "command": "lynkr",
        "args": ["mcp"]
      }
    }
  }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.lynkrClient()
			if err != nil {
				return err
			}

			mcpCfg := a.cfg.MCP
			if transport != "" {
				mcpCfg.Transport = transport
			}
			if addr != "" {
				mcpCfg.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := mcp.NewServer(client, mcp.WithName(mcpCfg.Name), mcp.WithLogger(a.logger))
			return srv.Serve(ctx, mcpCfg)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport: stdio or sse (overrides config)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address for sse (overrides config)")

	return cmd
}

func newServeCommand(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Lynkr tools over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.lynkrClient()
			if err != nil {
				return err
			}

			httpCfg := a.cfg.HTTP
			if !httpCfg.Enabled {
				return errors.New("HTTP gateway is disabled (http.enabled is false)")
			}
			if port > 0 {
				httpCfg.Port = port
			}
			if httpCfg.AuthToken == "" && !isLoopback(httpCfg.Host) {
				a.logger.Warnf("HTTP gateway on %s has no auth_token; anyone who can reach it can execute actions with stored keys", httpCfg.Host)
			}

			var chatter api.Chatter
			if a.cfg.LLM.APIKey != "" {
				agent, err := llm.NewAgent(a.cfg.LLM, client.AgentTools(), a.logger)
				if err != nil {
					return err
				}
				chatter = agent
			} else {
				a.logger.Info("OPENAI_API_KEY not set, /chat is disabled")
			}

			router := api.NewRouter(httpCfg, api.NewGateway(client, a.collector, chatter))
			srv := api.NewServer(httpCfg, router)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Infof("Starting HTTP gateway on %s", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("HTTP server error: %w", err)
				}
				return nil
			case <-ctx.Done():
				a.logger.Info("Shutting down HTTP gateway...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")

	return cmd
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

var quitWords = map[string]bool{"quit": true, "exit": true, "q": true, "bye": true}

func newChatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with an OpenAI agent that can use the Lynkr tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.lynkrClient()
			if err != nil {
				return err
			}
			agent, err := llm.NewAgent(a.cfg.LLM, client.AgentTools(), a.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			fmt.Fprintln(out, "Type your message (or 'quit' to exit):")
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				input := strings.TrimSpace(scanner.Text())
				if input == "" {
					continue
				}
				if quitWords[strings.ToLower(input)] {
					fmt.Fprintln(out, "Goodbye!")
					return nil
				}

				reply, err := agent.Chat(cmd.Context(), input)
				if err != nil {
					fmt.Fprintf(out, "\nError: %v\n\n", err)
					continue
				}
				fmt.Fprintf(out, "\nAI: %s\n\n", reply)
			}
		},
	}
}

func newInitCommand(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.DefaultConfig()
			cfg.Client.APIKey = "${LYNKR_API_KEY}"
			cfg.LLM.APIKey = "${OPENAI_API_KEY}"
			cfg.HTTP.AuthToken = "${LYNKR_HTTP_TOKEN}"
			cfg.Keys = []config.KeyConfig{{Service: "resend", Secret: "${RESEND_API_KEY}"}}

			if err := internalconfig.SaveConfig(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}
