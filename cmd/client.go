package cmd

import (
	"github.com/HynoR/wsvpn/config"
	"github.com/HynoR/wsvpn/service/client"
	"github.com/spf13/cobra"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Run the tunnel client",
	Long:  "Dials the tunnel server, authenticating the WebSocket upgrade with HTTP Basic credentials.",
	RunE:  runClient,
}

func init() {
	clientCmd.Flags().String("server", "127.0.0.1:3000", "server address to dial")
	clientCmd.Flags().String("hostname", "www.example.com", "SNI / upgrade URI host")
	clientCmd.Flags().String("ca-path", "", "CA certificate PEM path")
	clientCmd.Flags().Bool("accept-invalid-certs", false, "accept any server certificate (development only)")
	clientCmd.Flags().String("username", "", "Basic-Auth username")
	clientCmd.Flags().String("password", "", "Basic-Auth password")
	clientCmd.Flags().String("local-addr", "192.168.200.2", "this side's TUN address")
	clientCmd.Flags().String("script-path", "", "optional post-up script, run once after the first successful handshake")
}

func runClient(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	root := cmd.Root().PersistentFlags()

	tunName, _ := root.GetString("tun-name")
	tunMTU, _ := root.GetInt("tun-mtu")
	server, _ := flags.GetString("server")
	hostname, _ := flags.GetString("hostname")
	caPath, _ := flags.GetString("ca-path")
	acceptInvalid, _ := flags.GetBool("accept-invalid-certs")
	username, _ := flags.GetString("username")
	password, _ := flags.GetString("password")
	localAddr, _ := flags.GetString("local-addr")
	scriptPath, _ := flags.GetString("script-path")

	cfg := config.ClientConfig{
		Common: config.Common{
			TunName: tunName,
			TunMTU:  tunMTU,
		},
		Server:             server,
		Hostname:           hostname,
		CAPath:             caPath,
		AcceptInvalidCerts: acceptInvalid,
		Username:           username,
		Password:           password,
		LocalAddr:          localAddr,
		ScriptPath:         scriptPath,
	}

	return client.New().Run(cmd.Context(), cfg)
}
