// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"perun.network/go-perun/log"
	plogrus "perun.network/go-perun/log/logrus"

	"perun.network/icp-wallet-connector/client"
	"perun.network/icp-wallet-connector/host"
	"perun.network/icp-wallet-connector/host/wshost"
	"perun.network/icp-wallet-connector/session"
	"perun.network/icp-wallet-connector/setup"
	"perun.network/icp-wallet-connector/stoic"
	"perun.network/icp-wallet-connector/utils"
)

type (
	// HostFactory creates the host the remote signer is reached through.
	// Interactive URLs are announced on out.
	HostFactory func(cfg *setup.Config, out io.Writer) host.Host

	cli struct {
		v       *viper.Viper
		newHost HostFactory
	}

	// runtime is everything one command needs. stop ends the dispatch loop
	// and closes the session store.
	runtime struct {
		stoic     *stoic.Context
		wallet    *client.StoicConnector
		connector *client.Connector
		stop      func()
	}
)

func main() {
	if err := newRootCmd(websocketHost).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func websocketHost(_ *setup.Config, out io.Writer) host.Host {
	return wshost.New(wshost.WithLauncher(func(rawURL, name string) error {
		_, err := fmt.Fprintf(out, "Opening %s window at %s\n", name, rawURL)
		return err
	}))
}

func newRootCmd(newHost HostFactory) *cobra.Command {
	c := &cli{v: viper.New(), newHost: newHost}
	var configFile string

	root := &cobra.Command{
		Use:           "icwc",
		Short:         "Connect Internet Computer wallets and sign with their principal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configFile == "" {
				return nil
			}
			c.v.SetConfigFile(configFile)
			return errors.WithMessage(c.v.ReadInConfig(), "reading config file")
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	f.String("origin", stoic.DefaultOrigin, "origin of the remote signer")
	f.String("ic-host", setup.DefaultICHost, "boundary node for canister calls")
	f.StringSlice("whitelist", nil, "canisters the wallet may be asked to trust")
	f.Bool("dev", false, "fetch the root key of a local replica")
	f.String("store-path", utils.DefaultStoreDir(), "leveldb directory of the session")
	f.String("redis-addr", "", "keep the session in redis instead of leveldb")
	f.String("log-level", "info", "logrus log level")
	f.Duration("sign-timeout", 0, "bound on every signer request, 0 waits forever")
	for key, name := range map[string]string{
		setup.KeyOrigin:      "origin",
		setup.KeyICHost:      "ic-host",
		setup.KeyWhitelist:   "whitelist",
		setup.KeyDev:         "dev",
		setup.KeyStorePath:   "store-path",
		setup.KeyRedisAddr:   "redis-addr",
		setup.KeyLogLevel:    "log-level",
		setup.KeySignTimeout: "sign-timeout",
	} {
		if err := c.v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic("logic error: binding unknown flag " + name)
		}
	}

	root.AddCommand(c.connectCmd(), c.whoamiCmd(), c.signCmd(), c.disconnectCmd())
	return root
}

func (c *cli) open(ctx context.Context, out io.Writer) (*runtime, error) {
	cfg, err := setup.Load(c.v)
	if err != nil {
		return nil, err
	}
	lvl, _ := cfg.Level()
	plogrus.Set(lvl, &logrus.TextFormatter{})

	store, closer, err := cfg.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	sc, err := stoic.NewContext(cfg.Origin, c.newHost(cfg, out), store, stoic.WithSignTimeout(cfg.SignTimeout))
	if err != nil {
		closer.Close()
		return nil, err
	}
	icHost, _ := cfg.ICHostURL()
	ccfg := client.Config{ICHost: icHost, Whitelist: cfg.Whitelist, Dev: cfg.Dev}

	wallet := client.NewStoicConnector(ccfg, sc, cfg.SignTimeout)
	connectors := client.DefaultConnectors(ccfg, wallet, nil)
	for i, wc := range connectors {
		connectors[i] = client.WithLogging(log.Default(), wc)
	}
	connector := client.NewConnector(connectors...)

	runCtx, cancel := context.WithCancel(ctx)
	done := sc.Start(runCtx)

	return &runtime{
		stoic:     sc,
		wallet:    wallet,
		connector: connector,
		stop: func() {
			cancel()
			<-done
			if err := closer.Close(); err != nil {
				log.Warnf("Closing session store: %v", err)
			}
		},
	}, nil
}

// run opens a runtime for the duration of fn.
func (c *cli) run(cmd *cobra.Command, fn func(context.Context, *runtime) error) error {
	rt, err := c.open(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.stop()
	return fn(cmd.Context(), rt)
}

func (c *cli) connectCmd() *cobra.Command {
	var walletName string
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect a wallet, authorizing this client if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := client.ParseWalletType(walletName)
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, rt *runtime) error {
				wa, err := rt.connector.Connect(ctx, t)
				if err != nil {
					return err
				}
				printAuth(cmd.OutOrStdout(), wa)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&walletName, "wallet", client.StoicWallet.String(), "wallet to connect")
	return cmd
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the principal of the stored session without authorizing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, rt *runtime) error {
				r, err := rt.stoic.Load(ctx)
				if errors.Is(err, session.ErrNoSession) {
					fmt.Fprintln(cmd.OutOrStdout(), "not connected")
					return nil
				} else if err != nil {
					return err
				}
				printAuth(cmd.OutOrStdout(), &client.WalletAuth{
					Type:      client.StoicWallet,
					Principal: r.Principal().Encode(),
					AccountID: utils.PrincipalToAccountID(r.Principal()),
				})
				return nil
			})
		},
	}
}

func (c *cli) signCmd() *cobra.Command {
	var isHex bool
	cmd := &cobra.Command{
		Use:   "sign <message>",
		Short: "Sign a message with the connected principal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := []byte(args[0])
			if isHex {
				var err error
				if data, err = hex.DecodeString(args[0]); err != nil {
					return errors.WithMessage(err, "decoding message")
				}
			}
			return c.run(cmd, func(ctx context.Context, rt *runtime) error {
				if _, err := rt.connector.Connect(ctx, client.StoicWallet); err != nil {
					return err
				}
				res, err := rt.wallet.Identity().Sign(ctx, data)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "signature: %x\n", res.Signed)
				if res.Chain != nil {
					chain, err := json.Marshal(res.Chain)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "chain:     %s\n", chain)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&isHex, "hex", false, "the message is hex encoded")
	return cmd
}

func (c *cli) disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, rt *runtime) error {
				rt.connector.Disconnect(ctx, client.StoicWallet)
				fmt.Fprintln(cmd.OutOrStdout(), "disconnected")
				return nil
			})
		},
	}
}

func printAuth(out io.Writer, wa *client.WalletAuth) {
	fmt.Fprintf(out, "wallet:    %s\n", wa.Type)
	fmt.Fprintf(out, "principal: %s\n", wa.Principal)
	fmt.Fprintf(out, "account:   %s\n", wa.AccountID)
}
