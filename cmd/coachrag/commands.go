package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/xxxsen/coachrag/internal/ai"
	"github.com/xxxsen/coachrag/internal/config"
	"github.com/xxxsen/coachrag/internal/filestore"
	"github.com/xxxsen/coachrag/internal/loader"
	"github.com/xxxsen/coachrag/internal/model"
	"github.com/xxxsen/coachrag/internal/pkg/jwt"
	"github.com/xxxsen/coachrag/internal/repo"
	"github.com/xxxsen/coachrag/internal/service"
)

type ingestFlags struct {
	title           string
	sourceType      string
	storeKey        string
	tier            string
	coaches         []string
	tags            []string
	suppliedBy      string
	supplierType    string
	supplierEmail   string
	licenseType     string
	copyrightHolder string
	quiet           bool
	json            bool
}

// validate checks what can be checked without config or a database.
func (f *ingestFlags) validate(args []string) error {
	if len(args) == 0 && f.storeKey == "" {
		return fmt.Errorf("provide at least one file or --key")
	}
	if strings.TrimSpace(f.title) == "" {
		return fmt.Errorf("--title is required")
	}
	hasCoach := false
	for _, c := range f.coaches {
		hasCoach = hasCoach || strings.TrimSpace(c) != ""
	}
	if !hasCoach {
		return fmt.Errorf("--coaches is required (coach ids or a group such as %s)", service.AllDietGroup)
	}
	if _, err := model.ParseAccessTier(f.tier); err != nil {
		return fmt.Errorf("--tier: %w", err)
	}
	return nil
}

// usageError prints the command usage before handing err back, since the
// root command silences cobra's own usage output.
func usageError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n%s", err, cmd.UsageString())
	return err
}

func normalizeIngestFlag(f *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "coach":
		name = "coaches"
	case "tag":
		name = "tags"
	}
	return pflag.NormalizedName(name)
}

// docTitle names one document of an ingest run. Several documents share the
// --title as a prefix.
func docTitle(title string, doc *loader.Document, count int) string {
	if count <= 1 {
		return title
	}
	return title + " - " + doc.Title
}

func printIngestSummary(w io.Writer, title string, res *service.IngestResult) {
	fmt.Fprintf(w, "%s: processed=%d errors=%d status=%s source=%s\n",
		title, res.ProcessedCount, res.ErrorCount, res.Status, res.SourceID)
	if res.ErrorCount > 0 {
		fmt.Fprintf(w, "partial failure: %d of %d chunks were not stored: %s\n",
			res.ErrorCount, res.ProcessedCount+res.ErrorCount, strings.Join(res.Errors, "; "))
	}
	if len(res.GrantFailures) > 0 {
		fmt.Fprintf(w, "warning: %d coach grants failed\n", len(res.GrantFailures))
	}
	if !res.Finalized {
		fmt.Fprintln(w, "warning: source status was not finalized, run reconcile later")
	}
}

func (f *ingestFlags) options(groups service.CoachGroups) (service.IngestOptions, error) {
	tier, err := model.ParseAccessTier(f.tier)
	if err != nil {
		return service.IngestOptions{}, err
	}
	coaches, err := groups.Expand(f.coaches)
	if err != nil {
		return service.IngestOptions{}, fmt.Errorf("--coaches: %w", err)
	}
	return service.IngestOptions{
		Attribution: model.Attribution{
			SuppliedBy:      f.suppliedBy,
			SupplierType:    f.supplierType,
			SupplierEmail:   f.supplierEmail,
			LicenseType:     f.licenseType,
			CopyrightHolder: f.copyrightHolder,
		},
		Tier:    tier,
		Tags:    f.tags,
		Coaches: coaches,
	}, nil
}

func newIngestCmd(load configLoader) *cobra.Command {
	flags := &ingestFlags{}
	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "chunk, embed and store documents for coaches",
		Long: "Ingest local files (.md, .txt, youtube transcript .json) or, with --key, an object from the " +
			"configured file store. Coaches may be ids or group names such as all-diet.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(args); err != nil {
				return usageError(cmd, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			opts, err := flags.options(a.groups)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var docs []*loader.Document
			if flags.storeKey != "" {
				store, err := filestore.New(cfg.FileStore)
				if err != nil {
					return fmt.Errorf("init file store: %w", err)
				}
				doc, err := loader.Load(ctx, store, flags.storeKey, flags.sourceType)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
			}
			for _, path := range args {
				doc, err := loadLocal(ctx, path, flags.sourceType)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
			}
			out := cmd.OutOrStdout()
			for _, doc := range docs {
				doc.Title = docTitle(flags.title, doc, len(docs))
				var observer ai.ProgressObserver
				if !flags.quiet {
					observer = progressPrinter(cmd.ErrOrStderr(), doc.Title)
				}
				res, err := a.ingest.Ingest(ctx, service.IngestDocument{
					Title:      doc.Title,
					Content:    doc.Content,
					SourceType: doc.SourceType,
					ByteSize:   doc.ByteSize,
				}, opts, observer)
				if err != nil {
					return fmt.Errorf("ingest %q: %w", doc.Title, err)
				}
				if flags.json {
					if err := writeJSON(out, res); err != nil {
						return err
					}
					continue
				}
				printIngestSummary(out, doc.Title, res)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.SetNormalizeFunc(normalizeIngestFlag)
	f.StringVar(&flags.title, "title", "", "document title (required, a prefix when several files are given)")
	f.StringVar(&flags.sourceType, "source-type", "", "override source type, e.g. youtube")
	f.StringVar(&flags.storeKey, "key", "", "object key in the configured file store")
	f.StringVar(&flags.tier, "tier", string(model.AccessTierFree), "access tier: free, premium or pro")
	f.StringSliceVar(&flags.coaches, "coaches", nil, "coach ids or groups, comma separated (required, alias --coach)")
	f.StringSliceVar(&flags.tags, "tags", nil, "document tags, comma separated (alias --tag)")
	f.StringVar(&flags.suppliedBy, "supplied-by", "", "attribution: supplier name")
	f.StringVar(&flags.supplierType, "supplier-type", "", "attribution: supplier type")
	f.StringVar(&flags.supplierEmail, "supplier-email", "", "attribution: supplier email")
	f.StringVar(&flags.licenseType, "license", "", "attribution: license type")
	f.StringVar(&flags.copyrightHolder, "copyright", "", "attribution: copyright holder")
	f.BoolVar(&flags.quiet, "quiet", false, "do not print progress")
	f.BoolVar(&flags.json, "json", false, "print the ingest result as JSON")
	return cmd
}

func loadLocal(ctx context.Context, path, sourceType string) (*loader.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	store, err := filestore.NewLocalStore(filepath.Dir(abs))
	if err != nil {
		return nil, err
	}
	return loader.Load(ctx, store, filepath.Base(abs), sourceType)
}

func progressPrinter(w io.Writer, title string) ai.ProgressObserver {
	return ai.ProgressFunc(func(p ai.Progress) {
		fmt.Fprintf(w, "\r%s: %d/%d (%d%%)", title, p.Current, p.Total, p.Percent)
		if p.Current == p.Total {
			fmt.Fprintln(w)
		}
	})
}

func newSearchCmd(load configLoader) *cobra.Command {
	var (
		coach     string
		limit     int
		threshold float64
		tier      string
	)
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "semantic search within one coach's documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			req := service.SearchRequest{
				Query:   strings.Join(args, " "),
				CoachID: coach,
				Limit:   limit,
				Tier:    model.AccessTier(tier),
			}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = &threshold
			}
			resp, err := a.search.Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			if resp.Degraded {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: similarity search unavailable, results are unranked")
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&coach, "coach", "", "coach id (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max results (default from config)")
	cmd.Flags().Float64Var(&threshold, "threshold", service.DefaultSearchThreshold, "minimum cosine similarity")
	cmd.Flags().StringVar(&tier, "tier", "", "restrict to grants at or below this tier")
	_ = cmd.MarkFlagRequired("coach")
	return cmd
}

func newReconcileCmd(load configLoader) *cobra.Command {
	var staleAfter time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "finalize sources left in processing by interrupted ingestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if staleAfter <= 0 {
				staleAfter = time.Duration(cfg.Jobs.StaleAfterMinutes) * time.Minute
			}
			if !cfg.Database.Configured() {
				return fmt.Errorf("database is not configured: set %s or database.dsn", config.EnvDatabaseDSN)
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			svc := service.NewReconcileService(repo.NewSourceRepo(conn), repo.NewChunkRepo(conn))
			report, err := svc.Reconcile(cmd.Context(), staleAfter)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "age after which a processing source is settled (default from config)")
	return cmd
}

func newTokenCmd(load configLoader) *cobra.Command {
	var (
		subject string
		role    string
		tier    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "issue a signed access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("jwt secret is not configured: set %s", config.EnvJWTSecret)
			}
			token, err := jwt.GenerateToken(subject, "", role, tier, []byte(cfg.JWTSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "local-dev", "token subject")
	cmd.Flags().StringVar(&role, "role", jwt.RoleAuthenticated, "token role (service_role may ingest)")
	cmd.Flags().StringVar(&tier, "tier", string(model.AccessTierFree), "subscription tier claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx, stop
}
