package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/ruteri/storage-adapters/adapter"
	"github.com/ruteri/storage-adapters/catalog"
	"github.com/ruteri/storage-adapters/cmd/flags"
	"github.com/ruteri/storage-adapters/hooks"
	"github.com/ruteri/storage-adapters/interfaces"
	"github.com/ruteri/storage-adapters/registry"
	"github.com/urfave/cli/v2"
)

const storeName = "cli"

var (
	locationFlag = &cli.StringFlag{
		Name:     "location",
		Required: true,
		Usage:    "backend location URI, e.g. file:///var/lib/blobs",
		EnvVars:  []string{"STORAGE_LOCATION"},
	}
	keyFlag = &cli.StringFlag{
		Name:     "key",
		Required: true,
		Usage:    "backend key of the stored copy",
	}
	sealEnvFlag = &cli.StringFlag{
		Name:  "seal-env",
		Usage: "environment variable holding the passphrase used to seal or open payloads",
	}
)

func main() {
	app := &cli.App{
		Name:  "storagectl",
		Usage: "Run single storage adapter operations against a backend location",
		Flags: append([]cli.Flag{locationFlag, flags.VaultCertFlag, flags.VaultKeyFlag}, flags.LogFlags...),
		Commands: []*cli.Command{
			{
				Name:      "put",
				Usage:     "store a file and print its key",
				ArgsUsage: "<path|->",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "file name, defaults to the base name of path"},
					&cli.StringFlag{Name: "id", Usage: "file id, defaults to a random uuid"},
					&cli.StringFlag{Name: "type", Usage: "content type, sniffed when empty"},
					sealEnvFlag,
				},
				Action: putCmd,
			},
			{
				Name:   "get",
				Usage:  "write a stored copy to stdout",
				Flags:  []cli.Flag{keyFlag, sealEnvFlag},
				Action: getCmd,
			},
			{
				Name:  "range",
				Usage: "write bytes [start, end) of a stored copy to stdout",
				Flags: []cli.Flag{
					keyFlag,
					&cli.Int64Flag{Name: "start", Usage: "first byte offset"},
					&cli.Int64Flag{Name: "end", Usage: "end offset (exclusive), 0 reads to the end"},
					&cli.Int64Flag{Name: "size", Usage: "known copy size used to clamp end"},
				},
				Action: rangeCmd,
			},
			{
				Name:   "rm",
				Usage:  "remove a stored copy",
				Flags:  []cli.Flag{keyFlag},
				Action: rmCmd,
			},
			{
				Name:   "stat",
				Usage:  "print backend stats of a stored copy",
				Flags:  []cli.Flag{keyFlag},
				Action: statCmd,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openStore registers the location under a throwaway registry and returns
// its adapter.
func openStore(cCtx *cli.Context, logger *slog.Logger, opts *adapter.Options) (adapter.Adapter, error) {
	loc, err := interfaces.NewStorageBackendLocation(cCtx.String(locationFlag.Name))
	if err != nil {
		return nil, err
	}
	backend, err := flags.StorageFactory(cCtx, logger).StorageBackendFor(cCtx.Context, loc)
	if err != nil {
		return nil, err
	}

	return registry.New(logger).Register(storeName, backend, opts)
}

// storedFile stands in for a file whose copy lives under key.
func storedFile(cCtx *cli.Context) *catalog.File {
	key := cCtx.String(keyFlag.Name)
	file := catalog.NewFile("", filepath.Base(key), "", nil)
	file.SetCopy(storeName, interfaces.CopyRecord{Key: key, Size: cCtx.Int64("size")})
	return file
}

func passphrase(cCtx *cli.Context) ([]byte, error) {
	envName := cCtx.String(sealEnvFlag.Name)
	if envName == "" {
		return nil, nil
	}
	value := os.Getenv(envName)
	if value == "" {
		return nil, fmt.Errorf("environment variable %s is empty", envName)
	}
	return []byte(value), nil
}

func putCmd(cCtx *cli.Context) error {
	path := cCtx.Args().First()
	if path == "" {
		return errors.New("missing input path, use - for stdin")
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}

	name := cCtx.String("name")
	if name == "" {
		name = filepath.Base(path)
	}
	id := cCtx.String("id")
	if id == "" {
		id = uuid.NewString()
	}

	pass, err := passphrase(cCtx)
	if err != nil {
		return err
	}
	logger := flags.SetupLogger(cCtx)
	beforeSave := []adapter.BeforeSaveFunc{hooks.SniffType()}
	if pass != nil {
		beforeSave = append(beforeSave, hooks.Seal(pass, logger))
	}

	store, err := openStore(cCtx, logger, &adapter.Options{BeforeSave: hooks.Chain(beforeSave...)})
	if err != nil {
		return err
	}

	res, err := store.Insert(cCtx.Context, catalog.NewFile(id, name, cCtx.String("type"), data))
	if err != nil {
		return err
	}
	if !res.Stored() {
		return errors.New("write skipped")
	}

	logger.Debug("Stored file", "key", res.Info.Key, "size", res.Info.Size, "type", res.Info.Type)
	fmt.Println(res.Info.Key)
	return nil
}

func getCmd(cCtx *cli.Context) error {
	store, err := openStore(cCtx, flags.SetupLogger(cCtx), nil)
	if err != nil {
		return err
	}

	data, err := store.GetBuffer(cCtx.Context, storedFile(cCtx))
	if err != nil {
		return err
	}

	pass, err := passphrase(cCtx)
	if err != nil {
		return err
	}
	if pass != nil {
		if data, err = hooks.Open(pass, data); err != nil {
			return err
		}
	}

	_, err = os.Stdout.Write(data)
	return err
}

func rangeCmd(cCtx *cli.Context) error {
	store, err := openStore(cCtx, flags.SetupLogger(cCtx), nil)
	if err != nil {
		return err
	}

	ranger, ok := store.(adapter.RangeAdapter)
	if !ok {
		return fmt.Errorf("%s backends do not serve byte ranges", store.TypeName())
	}

	data, err := ranger.GetBytes(cCtx.Context, storedFile(cCtx), cCtx.Int64("start"), cCtx.Int64("end"))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func rmCmd(cCtx *cli.Context) error {
	store, err := openStore(cCtx, flags.SetupLogger(cCtx), nil)
	if err != nil {
		return err
	}

	removed, err := store.Remove(cCtx.Context, storedFile(cCtx), adapter.RemoveOptions{})
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("nothing stored under %s", cCtx.String(keyFlag.Name))
	}
	return nil
}

func statCmd(cCtx *cli.Context) error {
	store, err := openStore(cCtx, flags.SetupLogger(cCtx), nil)
	if err != nil {
		return err
	}

	stats, ok := store.Backend().(interfaces.StatsBackend)
	if !ok || !store.Capabilities().Stats {
		return fmt.Errorf("%s backends do not report stats", store.TypeName())
	}

	st, err := stats.Stats(cCtx.Context, cCtx.String(keyFlag.Name))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"key":         cCtx.String(keyFlag.Name),
		"size":        st.Size,
		"created_at":  st.CreatedAt,
		"modified_at": st.ModifiedAt,
		"type":        store.TypeName(),
	})
}
