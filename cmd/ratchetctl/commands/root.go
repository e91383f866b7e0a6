package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/op/go-logging.v1"

	doubleratchet "github.com/stalker-loki/heraldratchet"
	"github.com/stalker-loki/heraldratchet/config"
	"github.com/stalker-loki/heraldratchet/internal/instrument"
	rlog "github.com/stalker-loki/heraldratchet/internal/log"
	"github.com/stalker-loki/heraldratchet/store/boltstore"
	"github.com/stalker-loki/heraldratchet/store/sqlstore"
)

// env is shared by all subcommands of one invocation.
type env struct {
	cfgFile string

	cfg        *config.Config
	logBackend *rlog.Backend
	log        *logging.Logger

	keys     doubleratchet.KeyStore
	sessions doubleratchet.SessionStorage
	closer   io.Closer
}

func (e *env) setup() error {
	var err error
	if e.cfgFile == "" {
		e.cfg = config.Default()
	} else if e.cfg, err = config.LoadFile(e.cfgFile); err != nil {
		return err
	}

	e.logBackend, err = rlog.New(e.cfg.Logging.File, e.cfg.Logging.Level, e.cfg.Logging.Disable)
	if err != nil {
		return err
	}
	e.log = e.logBackend.GetLogger("ratchetctl")
	return e.openStorage()
}

func (e *env) openStorage() error {
	sCfg := e.cfg.Storage
	switch sCfg.Backend {
	case config.BackendBolt:
		s, err := boltstore.New(sCfg.Path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", sCfg.Path, err)
		}
		e.keys, e.sessions, e.closer = s, s, s
	case config.BackendSQLite:
		s, err := sqlstore.New(sCfg.Path)
		if err != nil {
			return err
		}
		e.keys, e.sessions, e.closer = s, s, s
	case config.BackendMemory:
		e.keys = doubleratchet.NewKeyStoreInMemory()
		e.sessions = doubleratchet.NewSessionStorageInMemory()
	default:
		return fmt.Errorf("unsupported storage backend: %s", sCfg.Backend)
	}
	e.log.Debugf("Opened %s storage", sCfg.Backend)
	return nil
}

func (e *env) teardown() error {
	var errs []error
	if e.closer != nil {
		errs = append(errs, e.closer.Close())
		e.closer = nil
	}
	if e.cfg != nil && e.cfg.Metrics.Textfile != "" {
		errs = append(errs, instrument.WriteTextfile(e.cfg.Metrics.Textfile))
	}
	if e.logBackend != nil {
		errs = append(errs, e.logBackend.Close())
		e.logBackend = nil
	}
	return errors.Join(errs...)
}

// ratchetOptions returns the options every ratchet of this invocation is built with.
func (e *env) ratchetOptions() []doubleratchet.Option {
	opts := e.cfg.Ratchet.Options()
	return append(opts, doubleratchet.WithLogger(e.logBackend.GetLogger("doubleratchet")))
}

func (e *env) loadSession(id string) (*doubleratchet.Session, error) {
	s, err := doubleratchet.LoadSession([]byte(id), e.keys, e.sessions, e.ratchetOptions()...)
	if errors.Is(err, doubleratchet.ErrSessionNotFound) {
		return nil, fmt.Errorf("no session %q, create it with init", id)
	}
	return s, err
}

func newRootCmd() (*cobra.Command, *env) {
	e := new(env)

	root := &cobra.Command{
		Use:          "ratchetctl",
		Short:        "Double Ratchet secure channel tool",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup()
		},
	}
	root.PersistentFlags().StringVarP(&e.cfgFile, "config", "c", "", "TOML configuration file")

	root.AddCommand(keygenCmd(), initCmd(e), encryptCmd(e), decryptCmd(e))
	return root, e
}

// run executes root and releases the environment even when the command failed.
func run(root *cobra.Command, e *env) error {
	err := root.Execute()
	return errors.Join(err, e.teardown())
}

// Execute runs the CLI.
func Execute() error {
	return run(newRootCmd())
}
