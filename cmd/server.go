package cmd

import (
	"github.com/HynoR/wsvpn/config"
	"github.com/HynoR/wsvpn/service/server"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the tunnel server",
	Long:  "Accepts one client at a time, authenticating the WebSocket upgrade with HTTP Basic credentials.",
	RunE:  runServer,
}

func init() {
	serverCmd.Flags().String("listen", "0.0.0.0:3000", "address to listen on")
	serverCmd.Flags().String("cert-path", "", "PEM certificate chain path")
	serverCmd.Flags().String("key-path", "", "PEM private key path")
	serverCmd.Flags().String("pkcs12-path", "", "PKCS#12 identity bundle path (alternative to --cert-path/--key-path)")
	serverCmd.Flags().String("pkcs12-password", "", "PKCS#12 bundle password")
	serverCmd.Flags().String("username", "", "expected Basic-Auth username")
	serverCmd.Flags().String("password", "", "expected Basic-Auth password")
	serverCmd.Flags().String("local-addr", "192.168.200.1", "this side's TUN address")
}

func runServer(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	root := cmd.Root().PersistentFlags()

	tunName, _ := root.GetString("tun-name")
	tunMTU, _ := root.GetInt("tun-mtu")
	listen, _ := flags.GetString("listen")
	certPath, _ := flags.GetString("cert-path")
	keyPath, _ := flags.GetString("key-path")
	pkcs12Path, _ := flags.GetString("pkcs12-path")
	pkcs12Password, _ := flags.GetString("pkcs12-password")
	username, _ := flags.GetString("username")
	password, _ := flags.GetString("password")
	localAddr, _ := flags.GetString("local-addr")

	cfg := config.ServerConfig{
		Common: config.Common{
			TunName: tunName,
			TunMTU:  tunMTU,
		},
		Listen:         listen,
		CertPath:       certPath,
		KeyPath:        keyPath,
		PKCS12Path:     pkcs12Path,
		PKCS12Password: pkcs12Password,
		Username:       username,
		Password:       password,
		LocalAddr:      localAddr,
	}

	return server.New().Run(cmd.Context(), cfg)
}
