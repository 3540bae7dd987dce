package ingest

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/CoReason-AI/coreason-etl-epar/internal/fetcher"
	"github.com/CoReason-AI/coreason-etl-epar/internal/model"
)

// sporOrganisation mirrors one Organisation element of the SPOR export.
// Role labels appear either as a Name child or as the Role element's own
// text, the export is inconsistent about it.
type sporOrganisation struct {
	OrgID string     `xml:"OrganisationId"`
	Name  string     `xml:"Name"`
	Roles []sporRole `xml:"Roles>Role"`
}

type sporRole struct {
	Name string `xml:"Name"`
	Text string `xml:",chardata"`
}

func (r sporRole) label() string {
	if r.Name != "" {
		return r.Name
	}
	return strings.TrimSpace(r.Text)
}

// ReadSPOR extracts the XML member of the SPOR export archive and parses all
// organisations into registry entries. Role filtering is the resolver's job;
// every organisation with an id and a name is returned.
func ReadSPOR(ctx context.Context, zipPath, workDir string) ([]model.RegistryEntry, error) {
	xmlPath, err := fetcher.ExtractXMLFromZIP(zipPath, workDir)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: extract SPOR export")
	}

	f, err := os.Open(xmlPath)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open SPOR XML")
	}
	defer f.Close() //nolint:errcheck

	orgs, err := fetcher.CollectXML[sporOrganisation](ctx, f, "Organisation")
	if err != nil {
		return nil, eris.Wrap(err, "ingest: parse SPOR XML")
	}

	var entries []model.RegistryEntry
	skipped := 0
	for _, org := range orgs {
		if org.OrgID == "" || org.Name == "" {
			skipped++
			continue
		}
		var roles []string
		for _, r := range org.Roles {
			if label := r.label(); label != "" {
				roles = append(roles, label)
			}
		}
		entries = append(entries, model.RegistryEntry{
			OrgID: org.OrgID,
			Name:  org.Name,
			Roles: roles,
		})
	}

	zap.L().Info("SPOR export ingested",
		zap.Int("organisations", len(entries)),
		zap.Int("skipped", skipped),
	)
	return entries, nil
}
