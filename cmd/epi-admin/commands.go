package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	theme "github.com/goliatone/go-theme"

	epiadmin "github.com/solutionEPI/epi-admin"
	"github.com/solutionEPI/epi-admin/internal/config"
	"github.com/solutionEPI/epi-admin/pkg/render"
	"github.com/solutionEPI/epi-admin/pkg/renderers/tui"
	"github.com/solutionEPI/epi-admin/pkg/transfer"
)

type app struct {
	engine *epiadmin.Engine
	cfg    *config.AppConfig
	tokens *fileTokenStore
	prompt *tui.Renderer
}

func (a *app) run(ctx context.Context, args []string) error {
	a.prompt = tui.New()

	command, rest := args[0], args[1:]
	if err := a.ensureSession(ctx); err != nil {
		return err
	}

	switch command {
	case "list":
		return a.list(ctx, rest)
	case "show":
		return a.show(ctx, rest)
	case "new":
		return a.create(ctx, rest)
	case "edit":
		return a.edit(ctx, rest)
	case "delete":
		return a.remove(ctx, rest)
	case "export":
		return a.export(ctx, rest)
	case "import":
		return a.importFile(ctx, rest)
	case "generate":
		return a.generate(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// ensureSession signs in with configured credentials when no session token
// is stored yet.
func (a *app) ensureSession(ctx context.Context) error {
	if a.cfg.Auth.Username == "" {
		return nil
	}
	if access, _ := a.tokens.Tokens(); access != "" {
		return nil
	}
	return a.engine.Login(ctx, a.cfg.Auth.Username, a.cfg.Auth.Password)
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	rendererName := fs.String("renderer", a.cfg.Renderer, "output renderer")
	model, err := parseModel(fs, args, "list")
	if err != nil {
		return err
	}

	view, err := a.engine.ListView(ctx, model)
	if err != nil {
		return err
	}
	result, err := view.Load(ctx, *page)
	if err != nil {
		return err
	}

	renderer, err := a.engine.Renderers.Get(*rendererName)
	if err != nil {
		return err
	}
	out, err := renderer.RenderTable(ctx, result, a.renderOptions())
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func (a *app) show(ctx context.Context, args []string) error {
	model, id, err := modelAndID(args, "show")
	if err != nil {
		return err
	}
	sch, err := a.engine.Schema(ctx, model)
	if err != nil {
		return err
	}
	raw, err := a.engine.Client.Get(ctx, fmt.Sprintf("%s%s/", sch.APIURL, id))
	if err != nil {
		return err
	}
	var pretty map[string]any
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return err
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func (a *app) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	prompt := fs.String("prompt", "", "pre-fill fields from an AI prompt")
	model, err := parseModel(fs, args, "new")
	if err != nil {
		return err
	}

	sess, err := a.engine.CreateSession(ctx, model)
	if err != nil {
		return err
	}
	if *prompt != "" {
		values, err := a.engine.Generate.Generate(ctx, sess.Schema(), *prompt)
		if err != nil {
			return err
		}
		applied := sess.ApplyGenerated(values)
		fmt.Printf("Pre-filled %d fields from the prompt.\n", applied)
	}
	return a.fillAndSubmit(ctx, sess)
}

func (a *app) edit(ctx context.Context, args []string) error {
	model, id, err := modelAndID(args, "edit")
	if err != nil {
		return err
	}
	sess, err := a.engine.EditSession(ctx, model, id)
	if err != nil {
		return err
	}
	return a.fillAndSubmit(ctx, sess)
}

func (a *app) fillAndSubmit(ctx context.Context, sess *epiadmin.Session) error {
	if err := a.prompt.Fill(ctx, sess); err != nil {
		return err
	}
	record, err := sess.Submit(ctx)
	if err != nil {
		summary, renderErr := a.prompt.RenderForm(ctx, sess, render.Options{})
		if renderErr == nil {
			os.Stdout.Write(summary)
		}
		return err
	}
	fmt.Printf("Saved %s %v.\n", sess.Schema().Title(), record["id"])
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	model, id, err := modelAndID(args, "delete")
	if err != nil {
		return err
	}
	view, err := a.engine.ListView(ctx, model)
	if err != nil {
		return err
	}
	deleted, err := view.Delete(ctx, id, a.prompt.Confirmer())
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Println("Cancelled.")
		return nil
	}
	fmt.Println("Deleted.")
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	formatName := fs.String("format", "csv", "export format: csv or json")
	output := fs.String("output", "", "output file (model_export.<format> if empty)")
	model, err := parseModel(fs, args, "export")
	if err != nil {
		return err
	}
	format, err := transfer.ParseFormat(*formatName)
	if err != nil {
		return err
	}

	sch, err := a.engine.Schema(ctx, model)
	if err != nil {
		return err
	}
	path := *output
	if path == "" {
		path = transfer.Filename(sch, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := a.engine.Transfer.Export(ctx, sch, format, f); err != nil {
		return err
	}
	fmt.Printf("Exported to %s.\n", path)
	return nil
}

func (a *app) importFile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	formatName := fs.String("format", "", "file format: csv or json (inferred from extension if empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: import <model> <file>")
	}
	model, path := fs.Arg(0), fs.Arg(1)

	name := *formatName
	if name == "" {
		name = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	format, err := transfer.ParseFormat(name)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sch, err := a.engine.Schema(ctx, model)
	if err != nil {
		return err
	}
	if err := a.engine.Transfer.Import(ctx, sch, filepath.Base(path), content, format); err != nil {
		return err
	}
	fmt.Println("Import accepted.")
	return nil
}

func (a *app) generate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	prompt := fs.String("prompt", "", "what the record should contain")
	model, err := parseModel(fs, args, "generate")
	if err != nil {
		return err
	}
	if *prompt == "" {
		return fmt.Errorf("usage: generate <model> -prompt text")
	}

	sch, err := a.engine.Schema(ctx, model)
	if err != nil {
		return err
	}
	values, err := a.engine.Generate.Generate(ctx, sch, *prompt)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func (a *app) renderOptions() render.Options {
	if a.cfg.Theme.Name == "" && len(a.cfg.Theme.CSSVars) == 0 {
		return render.Options{}
	}
	return render.Options{Theme: &theme.RendererConfig{
		Theme:   a.cfg.Theme.Name,
		CSSVars: a.cfg.Theme.CSSVars,
	}}
}

// parseModel parses flags that may appear after the positional model name,
// e.g. "list helmets -page 2".
func parseModel(fs *flag.FlagSet, args []string, command string) (string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", fmt.Errorf("usage: %s <model> [flags]", command)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return "", err
	}
	return args[0], nil
}

func modelAndID(args []string, command string) (string, string, error) {
	if len(args) < 2 {
		return "", "", fmt.Errorf("usage: %s <model> <id>", command)
	}
	return args[0], args[1], nil
}
