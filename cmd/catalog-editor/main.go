// Command catalog-editor browses the catalog and applies product edits
// through the REST API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/catalog-editor/internal/backend"
	"github.com/xenking/catalog-editor/internal/domain/draft"
	"github.com/xenking/catalog-editor/internal/editor"
	"github.com/xenking/catalog-editor/internal/preview"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func editFlags(extra ...cli.Flag) []cli.Flag {
	return append(extra,
		&cli.StringSliceFlag{Name: "set", Usage: "set a field, e.g. name=Tee or variants.0.price=19.99"},
		&cli.IntFlag{Name: "add-variant", Usage: "append `N` blank variants"},
		&cli.StringSliceFlag{Name: "image", Usage: "attach an image file to a variant, `INDEX=PATH`"},
	)
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:   "catalog-editor",
		Usage:  "edit products, variants and variant images",
		Writer: os.Stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend", Usage: "catalog API base URL (CATALOG_BACKEND_URL)"},
			&cli.DurationFlag{Name: "timeout", Usage: "per-request timeout (CATALOG_TIMEOUT)"},
			&cli.BoolFlag{Name: "debug", Usage: "log every request (CATALOG_DEBUG)"},
		},
		Commands: []*cli.Command{
			{
				Name:   "refs",
				Usage:  "list categories, brands and colors",
				Action: refsAction,
			},
			{
				Name:   "list",
				Usage:  "list products",
				Action: listAction,
			},
			{
				Name:      "show",
				Usage:     "show one product with its variants and images",
				ArgsUsage: "<id>",
				Action:    showAction,
			},
			{
				Name:   "create",
				Usage:  "create a product; variant 0 exists from the start",
				Flags:  editFlags(),
				Action: createAction,
			},
			{
				Name:      "edit",
				Usage:     "edit a product",
				ArgsUsage: "<id>",
				Flags: editFlags(
					&cli.IntSliceFlag{Name: "remove-variant", Usage: "remove the variant at `INDEX`"},
					&cli.StringSliceFlag{Name: "remove-image", Usage: "remove image `VARIANT:IMAGE`"},
				),
				Action: editAction,
			},
		},
	}
}

// env is what one command invocation works with.
type env struct {
	lg      *zap.Logger
	client  *backend.Client
	session *editor.Session
}

func setup(c *cli.Command) (*env, error) {
	cfg, err := LoadConfig(c)
	if err != nil {
		return nil, err
	}

	lg, err := newLogger(cfg.Debug)
	if err != nil {
		return nil, errors.Wrap(err, "create logger")
	}
	client, err := backend.New(backend.Options{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.Timeout,
		Logger:  lg.Named("backend"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create backend client")
	}
	session, err := editor.NewSession(client, preview.New(cfg.PreviewMaxAge), editor.Options{Logger: lg})
	if err != nil {
		return nil, errors.Wrap(err, "create session")
	}
	return &env{lg: lg, client: client, session: session}, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func productID(c *cli.Command) (int64, error) {
	if c.Args().Len() != 1 {
		return 0, errors.Errorf("%s: want exactly one product id", c.Name)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid product id %q", c.Args().First())
	}
	return id, nil
}

func refsAction(ctx context.Context, c *cli.Command) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = rt.lg.Sync() }()

	refs, err := rt.session.Refs(ctx)
	if err != nil {
		return err
	}
	return printRefs(c.Root().Writer, refs)
}

func listAction(ctx context.Context, c *cli.Command) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = rt.lg.Sync() }()

	if err := rt.session.Open(ctx); err != nil {
		return err
	}
	refs, err := rt.session.Refs(ctx)
	if err != nil {
		return err
	}
	return printProducts(c.Root().Writer, rt.session.Products(), refs)
}

func showAction(ctx context.Context, c *cli.Command) error {
	id, err := productID(c)
	if err != nil {
		return err
	}
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = rt.lg.Sync() }()

	refs, err := rt.session.Refs(ctx)
	if err != nil {
		return err
	}
	p, err := rt.client.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	return printProduct(c.Root().Writer, p, refs)
}

func createAction(ctx context.Context, c *cli.Command) error {
	e, err := parseEdits(c.StringSlice("set"), c.StringSlice("image"), nil, int(c.Int("add-variant")), nil)
	if err != nil {
		return err
	}
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = rt.lg.Sync() }()

	d, err := rt.session.BeginCreate(ctx)
	if err != nil {
		return err
	}
	return save(ctx, c, rt, e, d)
}

func editAction(ctx context.Context, c *cli.Command) error {
	id, err := productID(c)
	if err != nil {
		return err
	}
	var removeVariants []int
	for _, i := range c.IntSlice("remove-variant") {
		removeVariants = append(removeVariants, int(i))
	}
	e, err := parseEdits(c.StringSlice("set"), c.StringSlice("image"), c.StringSlice("remove-image"),
		int(c.Int("add-variant")), removeVariants)
	if err != nil {
		return err
	}
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = rt.lg.Sync() }()

	d, err := rt.session.BeginEdit(ctx, id)
	if err != nil {
		return err
	}
	return save(ctx, c, rt, e, d)
}

// save applies e to d and syncs it. The draft is dropped either way: a CLI
// invocation has no later chance to retry it.
func save(ctx context.Context, c *cli.Command, rt *env, e *edits, d *draft.Draft) error {
	defer rt.session.Cancel()

	if err := e.apply(d, readFile); err != nil {
		return err
	}
	rep, err := rt.session.Save(ctx)
	if rep != nil {
		printReport(c.Root().Writer, rep)
	}
	if err != nil {
		return errors.New(describeSaveError(err))
	}
	return nil
}
