package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Server struct {
	Bind    string `mapstructure:"bind"`
	Dir     string `mapstructure:"dir"`
	SSLCert string `mapstructure:"sslcert"`
	SSLKey  string `mapstructure:"sslkey"`
	Proxy   bool   `mapstructure:"proxy"`
	PProf   bool   `mapstructure:"pprof"`
}

func (Server) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().String("bind", "127.0.0.1:8080", "address/port/socket to serve http")
	if err := viper.BindPFlag("bind", cmd.PersistentFlags().Lookup("bind")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("dir", "out", "directory with generated assets to serve")
	if err := viper.BindPFlag("dir", cmd.PersistentFlags().Lookup("dir")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("sslcert", "", "path to the SSL cert")
	if err := viper.BindPFlag("sslcert", cmd.PersistentFlags().Lookup("sslcert")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("sslkey", "", "path to the SSL key")
	if err := viper.BindPFlag("sslkey", cmd.PersistentFlags().Lookup("sslkey")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("proxy", false, "allow reverse proxies")
	if err := viper.BindPFlag("proxy", cmd.PersistentFlags().Lookup("proxy")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("pprof", false, "enable pprof endpoint available at /debug/pprof")
	if err := viper.BindPFlag("pprof", cmd.PersistentFlags().Lookup("pprof")); err != nil {
		return err
	}

	return nil
}

func (s *Server) Set() {
	if err := viper.Unmarshal(s); err != nil {
		log.Panic().Err(err).Msg("unable to unmarshal config structure")
	}
}
