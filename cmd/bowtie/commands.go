package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dd0wney/cluso-bowtie/pkg/archive"
	"github.com/dd0wney/cluso-bowtie/pkg/auth"
	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/dd0wney/cluso-bowtie/pkg/editor"
	"github.com/dd0wney/cluso-bowtie/pkg/pipeline"
	"github.com/dd0wney/cluso-bowtie/pkg/propagation"
	"github.com/dd0wney/cluso-bowtie/pkg/validation"
)

var errUsage = errors.New("expected exactly one file argument")

func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// readDocument reads path, or stdin for "-"
func readDocument(e *env, path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(e.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return archive.Decode(path, data)
}

// open loads a file into an editor
func open(e *env, fs *flag.FlagSet, opts pipeline.Options) (*editor.Editor, []bowtie.Issue, error) {
	if fs.NArg() != 1 {
		return nil, nil, errUsage
	}
	data, err := readDocument(e, fs.Arg(0))
	if err != nil {
		return nil, nil, err
	}
	ed := editor.New(bowtie.Graph{}, editor.Config{ID: fs.Arg(0), Pipeline: opts})
	warnings, err := ed.Import(data)
	if err != nil {
		return nil, nil, err
	}
	return ed, warnings, nil
}

func printIssues(w io.Writer, issues []bowtie.Issue) {
	for _, is := range issues {
		fmt.Fprintf(w, "warning: %s\n", is.Message)
	}
}

func cmdEvaluate(e *env, args []string) error {
	fs := newFlagSet(e, "evaluate")
	risk := fs.Bool("risk", false, "score residual risk")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	maxPaths := fs.Int("max-paths", 10000, "cap path enumeration per threat (0 = no cap)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ed, warnings, err := open(e, fs, pipeline.Options{RiskScoring: *risk, MaxPathsPerThreat: *maxPaths})
	if err != nil {
		return err
	}
	printIssues(e.stderr, warnings)
	view := ed.View()

	if *asJSON {
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view.Report)
	}
	printReport(e.stdout, view, *risk)
	return nil
}

func printReport(w io.Writer, view *pipeline.View, risk bool) {
	r := view.Report
	labels := make(map[string]string, len(view.Graph.Nodes))
	for _, n := range view.Graph.Nodes {
		labels[n.ID] = n.Data.BaseLabel
	}

	status := "intact"
	if r.TopEventBreached {
		status = "BREACHED"
	}
	fmt.Fprintf(w, "Top event: %s (%s) %s\n", labels[r.TopEventID], r.TopEventID, status)
	fmt.Fprintf(w, "Paths: %d full, %d partial, %d safe\n",
		r.Count(propagation.VerdictFull), r.Count(propagation.VerdictPartial), r.Count(propagation.VerdictSafe))
	if r.Truncated {
		fmt.Fprintln(w, "Path enumeration was truncated; raise -max-paths for a complete report")
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "THREAT\tVERDICT\tBLOCKED BY\tPATH")
	for _, p := range r.Paths {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", labels[p.Threat], p.Verdict, labels[p.BlockedBy], strings.Join(p.Nodes, " → "))
	}
	tw.Flush()

	var breached []string
	for _, n := range view.Graph.Nodes {
		if n.Kind() == bowtie.KindConsequence && n.Data.Meta.Breached {
			breached = append(breached, n.Data.BaseLabel)
		}
	}
	if len(breached) > 0 {
		fmt.Fprintf(w, "\nConsequences reached: %s\n", strings.Join(breached, ", "))
	}

	if risk {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NODE\tBASE\tRESIDUAL")
		for _, n := range view.Graph.Nodes {
			if m := n.Data.Meta; m.BaseRisk > 0 {
				fmt.Fprintf(tw, "%s\t%.0f\t%.1f\n", n.Data.BaseLabel, m.BaseRisk, m.ResidualRisk)
			}
		}
		tw.Flush()
	}
}

func cmdValidate(e *env, args []string) error {
	fs := newFlagSet(e, "validate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	data, err := readDocument(e, fs.Arg(0))
	if err != nil {
		return err
	}
	doc, err := bowtie.ParseDocument(data)
	if err != nil {
		return err
	}
	if err := validation.ValidateDocument(doc); err != nil {
		return err
	}

	_, ix := bowtie.Normalize(doc.Graph())
	printIssues(e.stderr, ix.Issues)
	fmt.Fprintf(e.stdout, "ok: %d nodes, %d edges, %d threats, %d consequences\n",
		len(doc.Nodes), len(doc.Edges), len(ix.IDs(bowtie.KindThreat)), len(ix.IDs(bowtie.KindConsequence)))
	return nil
}

// listFlag collects comma-separated or repeated values
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func cmdExport(e *env, args []string) error {
	fs := newFlagSet(e, "export")
	var collapse, expand, highlight listFlag
	fs.Var(&collapse, "collapse", "threat or consequence ids to collapse")
	fs.Var(&collapse, "collapse-consequences", "alias of -collapse")
	fs.Var(&expand, "expand", "node ids whose details are shown")
	fs.Var(&highlight, "highlight", "node ids to spotlight")
	risk := fs.Bool("risk", false, "score residual risk")
	layout := fs.Bool("layout", false, "recompute positions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ed, warnings, err := open(e, fs, pipeline.Options{RiskScoring: *risk})
	if err != nil {
		return err
	}
	printIssues(e.stderr, warnings)

	if *layout {
		if _, err := ed.AutoLayout(); err != nil {
			return err
		}
	}
	for _, id := range collapse {
		if _, err := ed.ToggleCollapse(id); err != nil {
			return err
		}
	}
	for _, id := range expand {
		if _, err := ed.ToggleDetails(id); err != nil {
			return err
		}
	}
	for _, id := range highlight {
		if _, err := ed.ToggleHighlight(id); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(ed.View().Graph)
}

func cmdGenerate(e *env, args []string) error {
	fs := newFlagSet(e, "generate")
	opts := bowtie.RandomOptions{}
	fs.IntVar(&opts.Threats, "threats", 3, "number of threats")
	fs.IntVar(&opts.Consequences, "consequences", 3, "number of consequences")
	fs.IntVar(&opts.MaxBarriers, "barriers", 2, "longest barrier chain per branch")
	fs.Float64Var(&opts.FailRate, "fail", 0.3, "probability a barrier is failed")
	fs.IntVar(&opts.CrossLinks, "cross", 0, "extra random edges")
	seed := fs.Int64("seed", time.Now().UnixNano(), "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.FailRate < 0 || opts.FailRate > 1 {
		return fmt.Errorf("-fail must be within [0,1], got %v", opts.FailRate)
	}

	g := bowtie.Random(rand.New(rand.NewSource(*seed)), opts)
	data, err := bowtie.Export(g)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.stdout, string(data))
	return err
}

func cmdToken(e *env, args []string) error {
	fs := newFlagSet(e, "token")
	subject := fs.String("sub", "", "token subject")
	role := fs.String("role", auth.RoleViewer, "viewer, editor or admin")
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := auth.NewJWTManager(e.getenv("BOWTIE_JWT_SECRET"), *ttl)
	if err != nil {
		return err
	}
	token, err := m.GenerateToken(*subject, *role)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.stdout, token)
	return err
}
