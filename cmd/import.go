package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/contact-research/internal/model"
	"github.com/sells-group/contact-research/internal/persist"
)

var importFile string

// contactRecord is one entry of an import file. JSON files parse as YAML.
type contactRecord struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Title        string   `yaml:"title"`
	Organization string   `yaml:"organization"`
	Email        string   `yaml:"email"`
	ProfileURL   string   `yaml:"profile_url"`
	SocialURL    string   `yaml:"social_url"`
	WebsiteURL   string   `yaml:"website_url"`
	Type         string   `yaml:"type"`
	Warmth       string   `yaml:"warmth"`
	Tags         []string `yaml:"tags"`
	Genres       []string `yaml:"genres"`
	Archived     bool     `yaml:"archived"`
}

func (r contactRecord) contact() model.Contact {
	return model.Contact{
		ID:           strings.TrimSpace(r.ID),
		Name:         strings.TrimSpace(r.Name),
		Title:        r.Title,
		Organization: r.Organization,
		Email:        r.Email,
		ProfileURL:   r.ProfileURL,
		SocialURL:    r.SocialURL,
		WebsiteURL:   r.WebsiteURL,
		Type:         r.Type,
		Warmth:       r.Warmth,
		Tags:         r.Tags,
		Genres:       r.Genres,
		Archived:     r.Archived,
	}
}

// parseContacts reads either a top-level list of contacts or a document with
// a "contacts" list. Entries without an id get a generated one.
func parseContacts(r io.Reader) ([]model.Contact, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "read contacts")
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, eris.Wrap(err, "parse contacts")
	}

	if len(node.Content) == 0 {
		return []model.Contact{}, nil
	}

	var records []contactRecord
	if node.Content[0].Kind == yaml.MappingNode {
		var doc struct {
			Contacts []contactRecord `yaml:"contacts"`
		}
		if err := node.Decode(&doc); err != nil {
			return nil, eris.Wrap(err, "decode contacts")
		}
		records = doc.Contacts
	} else if err := node.Decode(&records); err != nil {
		return nil, eris.Wrap(err, "decode contacts")
	}

	contacts := make([]model.Contact, 0, len(records))
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		c := rec.contact()
		if c.Name == "" {
			return nil, eris.Errorf("contact %d: name is required", i+1)
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if seen[c.ID] {
			return nil, eris.Errorf("contact %d: duplicate id %q", i+1, c.ID)
		}
		seen[c.ID] = true
		contacts = append(contacts, c)
	}
	return contacts, nil
}

// contactSource reads back the merged row; the store implements it.
type contactSource interface {
	GetContact(ctx context.Context, id string) (*model.Contact, error)
}

// mirrorContacts best-effort copies the stored contacts into the graph. The
// mirror is built from the merged row rather than the import record so
// research written by earlier enrichment runs is carried over.
func mirrorContacts(ctx context.Context, src contactSource, g persist.Graph, contacts []model.Contact) int {
	failed := 0
	for _, in := range contacts {
		c, err := src.GetContact(ctx, in.ID)
		if err != nil {
			zap.L().Warn("import: reload contact failed", zap.String("contact_id", in.ID), zap.Error(err))
			failed++
			continue
		}
		if err := g.UpsertContact(ctx, c.GraphMirror()); err != nil {
			zap.L().Warn("import: graph upsert failed", zap.String("contact_id", c.ID), zap.Error(err))
			failed++
			continue
		}
		if err := g.MergeRelations(ctx, c.ID, c.Tags, c.Genres); err != nil {
			zap.L().Warn("import: graph relations failed", zap.String("contact_id", c.ID), zap.Error(err))
			failed++
		}
	}
	return failed
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Seed contacts from a YAML or JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := os.Open(importFile)
		if err != nil {
			return eris.Wrapf(err, "open %s", importFile)
		}
		defer f.Close() //nolint:errcheck

		contacts, err := parseContacts(f)
		if err != nil {
			return err
		}
		if len(contacts) == 0 {
			zap.L().Warn("import: file has no contacts", zap.String("file", importFile))
			return nil
		}

		env, err := initEnv(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Store.ImportContacts(ctx, contacts)
		if err != nil {
			return eris.Wrap(err, "import contacts")
		}

		failed := 0
		if g := env.graphWriter(); g != nil {
			failed = mirrorContacts(ctx, env.Store, g, contacts)
		}

		zap.L().Info("import complete",
			zap.String("file", importFile),
			zap.Int("parsed", len(contacts)),
			zap.Int64("merged", n),
			zap.Int("graph_failures", failed),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to a YAML or JSON contacts file")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
