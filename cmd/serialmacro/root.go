package main

import (
	"fmt"
	"os"

	"github.com/DJA-prog/serialmacro/internal/config"
	"github.com/spf13/cobra"
)

var (
	v        = config.New()
	cfgFile  string
	settings *config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "serialmacro",
	Short: "serialmacro runs command macros against serial devices",
	Long: `serialmacro sends commands to a serial device, waits for expected responses
and asks the operator when a macro needs a decision.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		s, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		settings = s
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Settings file (default: ./settings.yaml or "+config.Dir()+"/settings.yaml)")
	pf.StringP("port", "p", "", "Serial device path")
	pf.IntP("baud", "b", 115200, "Baud rate")
	pf.Bool("virtual", false, "Open a virtual serial port (pty) instead of a device")
	pf.String("line-ending", "LN", "Line ending appended to commands: LN, CR, CRLN or NUL")
	pf.String("macros", "", "Extra directory to load macros from")
	pf.String("redis", "", "Redis address for shared run history and port locking")
	pf.String("event-log", "", "SQLite file to record run events in")
	pf.String("simulate", "", "Simulator script to use instead of a serial device")
	pf.Bool("debug", false, "Enable debug logging to stderr")

	bind(pf, config.KeySerialPort, "port")
	bind(pf, config.KeySerialBaud, "baud")
	bind(pf, config.KeySerialVirtual, "virtual")
	bind(pf, config.KeyLineEnding, "line-ending")
	bind(pf, config.KeyMacrosDir, "macros")
	bind(pf, config.KeyRedisAddr, "redis")
	bind(pf, config.KeyEventLog, "event-log")
}
