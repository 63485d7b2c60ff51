// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

// Package main is the entrypoint for regio, a read-only client for OCI and
// Docker container registries. It lists tags, fetches manifests and
// resolves digests, negotiating whatever authentication scheme the
// registry demands.
package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"go.opendefense.cloud/regio/internal/regio/config"
	"go.opendefense.cloud/regio/internal/regio/logging"
	"go.opendefense.cloud/regio/pkg/registry/oci"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

type rootOptions struct {
	configFile   string
	registry     string
	dockerConfig string
	proxy        string
	debug        bool
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "regio",
		Short: "Regio - read-only OCI registry client",
		Long: `Regio talks to OCI and Docker container registries over the
distribution v2 API. It normalizes registry endpoints, picks credentials
from Docker config documents and negotiates Basic, token and OAuth2
authentication transparently.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to configuration file")
	cmd.PersistentFlags().StringVarP(&opts.registry, "registry", "r", "", "Registry URL, hostname or configured registry name")
	cmd.PersistentFlags().StringVar(&opts.dockerConfig, "docker-config", "", "Path to a Docker config JSON document with credentials")
	cmd.PersistentFlags().StringVar(&opts.proxy, "proxy", "", "Outbound proxy URL")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newTagsCommand(opts))
	cmd.AddCommand(newManifestCommand(opts))
	cmd.AddCommand(newDigestCommand(opts))
	cmd.AddCommand(newPingCommand(opts))
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newTagsCommand(opts *rootOptions) *cobra.Command {
	var pageSize, limit int

	cmd := &cobra.Command{
		Use:   "tags <repository>",
		Short: "List the tags of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, regCfg, err := buildClient(opts)
			if err != nil {
				return err
			}
			if pageSize == 0 {
				pageSize = regCfg.PageSize
			}
			if limit == 0 {
				limit = regCfg.TagLimit
			}

			tags, err := client.GetTags(cmd.Context(), args[0], pageSize, limit)
			if err != nil {
				return err
			}
			for _, tag := range tags {
				fmt.Println(tag)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Tags requested per page")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of tags to fetch")

	return cmd
}

func newManifestCommand(opts *rootOptions) *cobra.Command {
	var manifestTypes []string

	cmd := &cobra.Command{
		Use:   "manifest <repository> <reference>",
		Short: "Fetch the manifest of a repository reference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := buildClient(opts)
			if err != nil {
				return err
			}

			manifest, err := client.GetManifest(cmd.Context(), args[0], args[1], manifestTypes...)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(manifest)
		},
	}

	cmd.Flags().StringSliceVar(&manifestTypes, "type", nil, "Manifest media types to accept (e.g. oci_manifest, docker_manifest_v2)")

	return cmd
}

func newDigestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "digest <repository> <reference>",
		Short: "Resolve a reference to its manifest digest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := buildClient(opts)
			if err != nil {
				return err
			}

			dgst, err := client.GetManifestDigest(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(dgst.String())
			return nil
		},
	}
}

func newPingCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the registry's v2 API is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := buildClient(opts)
			if err != nil {
				return err
			}

			if err := client.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("%s is reachable\n", client.Endpoint())
			return nil
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(args[0])
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("validating config: %w", err)
			}

			fmt.Println("Configuration is valid")
			fmt.Printf("  Registries: %d\n", len(cfg.Registries))

			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("regio %s\n", version)
			fmt.Printf("  commit:  %s\n", commit)
			fmt.Printf("  built:   %s\n", buildTime)
		},
	}
}

// buildClient resolves the flags and configuration into a registry client
// plus the effective per-registry settings.
func buildClient(opts *rootOptions) (*oci.RegistryClient, config.RegistryConfig, error) {
	if opts.registry == "" {
		return nil, config.RegistryConfig{}, fmt.Errorf("no registry given, use --registry")
	}

	cfg := config.DefaultConfig()
	if opts.configFile != "" {
		loaded, err := config.LoadConfig(opts.configFile)
		if err != nil {
			return nil, config.RegistryConfig{}, err
		}
		if err := loaded.Validate(); err != nil {
			return nil, config.RegistryConfig{}, err
		}
		cfg = loaded
	}

	// --registry may name a configured registry; anything not found in the
	// configuration is treated as a URL or hostname.
	regCfg, err := cfg.Registry(opts.registry)
	if err != nil {
		regCfg = config.RegistryConfig{
			URL:      opts.registry,
			PageSize: oci.DefaultPageSize,
			TagLimit: oci.DefaultTagLimit,
		}
	}

	logger, err := newLogger(opts.debug, cfg.Logging)
	if err != nil {
		return nil, config.RegistryConfig{}, err
	}

	clientOpts := []oci.ClientOption{
		oci.WithLogger(logger),
		oci.WithUserAgent("regio/" + version),
	}

	dockerConfigFile := opts.dockerConfig
	if dockerConfigFile == "" {
		dockerConfigFile = regCfg.DockerConfigFile
	}
	if dockerConfigFile != "" {
		doc, err := os.ReadFile(dockerConfigFile)
		if err != nil {
			return nil, config.RegistryConfig{}, fmt.Errorf("reading docker config: %w", err)
		}
		clientOpts = append(clientOpts, oci.WithDockerConfigJSON(string(doc)))
	}

	proxy := opts.proxy
	if proxy == "" {
		proxy = cfg.Proxy
	}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, config.RegistryConfig{}, fmt.Errorf("parsing proxy URL: %w", err)
		}
		clientOpts = append(clientOpts, oci.WithProxy(proxyURL))
	}

	return oci.NewClient(regCfg.URL, clientOpts...), regCfg, nil
}

// newLogger builds the logger according to the logging configuration;
// --debug overrides the configured level.
func newLogger(debug bool, logCfg config.LoggingConfig) (logr.Logger, error) {
	level := logCfg.Level
	if debug {
		level = "debug"
	}

	encoding := ""
	if logCfg.Format == "text" {
		encoding = "console"
	}

	return logging.NewLogger(logging.Config{
		Level:       level,
		Development: debug,
		Encoding:    encoding,
	})
}
