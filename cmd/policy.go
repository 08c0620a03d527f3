package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paperboy/internal/config"
	"paperboy/pkg/domain"
	"paperboy/pkg/logger"
	"paperboy/pkg/storage"
)

// policyCommand groups the offline policy-store management subcommands. They
// operate directly on the store, without the bot running.
func policyCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage the domain policy store",
	}

	cmd.AddCommand(
		policyListCommand(cfg),
		policyAddCommand(cfg),
		policyRemoveCommand(cfg),
		policyToggleCommand(cfg, "whitelist", "Toggle whether a domain is whitelisted",
			func(p *domain.DomainPolicy) string {
				p.Whitelisted = !p.Whitelisted

				return fmt.Sprintf("%s whitelisted: %v", p.Domain, p.Whitelisted)
			}),
		policyToggleCommand(cfg, "paywall", "Toggle paywall bypass for a domain",
			func(p *domain.DomainPolicy) string {
				p.PaywallBypass = !p.PaywallBypass

				return fmt.Sprintf("%s paywall bypass: %v", p.Domain, p.PaywallBypass)
			}),
	)

	return cmd
}

func policyListCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every domain policy",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			strg, closeStrg := getStorage(ctx, cfg)
			defer closeStrg()

			policies, err := strg.Policies(ctx)
			if err != nil {
				logger.Fatal(ctx, "could not list policies", zap.Error(err))
			}

			cmd.Printf("%-30s %-5s %-7s %5s  %s\n", "domain", "white", "paywall", "runs", "updated")
			for _, p := range policies {
				cmd.Printf("%-30s %-5v %-7v %5d  %s\n",
					p.Domain, p.Whitelisted, p.PaywallBypass, p.UsageCount,
					p.UpdatedAt.Format("2006-01-02 15:04"))
			}
		},
	}
}

func policyAddCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "add <domain>",
		Short: "Add a domain and whitelist it",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			strg, closeStrg := getStorage(ctx, cfg)
			defer closeStrg()

			dom, err := domain.Resolve(args[0])
			if err != nil {
				logger.Fatal(ctx, "invalid domain", zap.Error(err))
			}

			policy, err := strg.Policy(ctx, dom)
			if err != nil {
				logger.Fatal(ctx, "could not read policy", zap.Error(err))
			}
			if policy == nil {
				fresh := domain.NewProvisionalPolicy(dom)
				policy = &fresh
			}
			policy.Whitelisted = true

			if err := strg.StorePolicy(ctx, *policy); err != nil {
				logger.Fatal(ctx, "could not store policy", zap.Error(err))
			}
			cmd.Printf("%s whitelisted\n", dom)
		},
	}
}

func policyRemoveCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <domain>",
		Short: "Remove a domain policy",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			strg, closeStrg := getStorage(ctx, cfg)
			defer closeStrg()

			dom, err := domain.Resolve(args[0])
			if err != nil {
				logger.Fatal(ctx, "invalid domain", zap.Error(err))
			}

			removed, err := strg.RemovePolicy(ctx, dom)
			if err != nil {
				logger.Fatal(ctx, "could not remove policy", zap.Error(err))
			}
			if !removed {
				cmd.Printf("%s is not on file\n", dom)

				return
			}
			cmd.Printf("%s removed\n", dom)
		},
	}
}

func policyToggleCommand(cfg *config.Config,
	use, short string,
	toggle func(*domain.DomainPolicy) string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <domain>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			strg, closeStrg := getStorage(ctx, cfg)
			defer closeStrg()

			dom, err := domain.Resolve(args[0])
			if err != nil {
				logger.Fatal(ctx, "invalid domain", zap.Error(err))
			}

			policy, err := loadPolicy(ctx, strg, dom)
			if err != nil {
				logger.Fatal(ctx, "could not read policy", zap.Error(err))
			}

			out := toggle(policy)
			if err := strg.StorePolicy(ctx, *policy); err != nil {
				logger.Fatal(ctx, "could not store policy", zap.Error(err))
			}
			cmd.Println(out)
		},
	}
}

func loadPolicy(ctx context.Context, strg storage.PolicyStorage, dom string) (*domain.DomainPolicy, error) {
	policy, err := strg.Policy(ctx, dom)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, fmt.Errorf("%s is not on file", dom)
	}

	return policy, nil
}
