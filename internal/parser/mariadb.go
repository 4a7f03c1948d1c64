package parser

import (
	"database/sql"
	"fmt"
	"sort"

	"panaudit/internal/model"

	_ "github.com/go-sql-driver/mysql"
)

// MariaDBProvider loads a previously exported rule/object snapshot from a
// firewall-management MariaDB instead of a config file. The snapshot is
// re-analyzed exactly like a freshly parsed export.
type MariaDBProvider struct {
	db *sql.DB

	Rules    []model.Rule
	Objects  []model.Object
	Metadata model.Metadata
}

func NewMariaDBProvider(dsn string) (*MariaDBProvider, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &MariaDBProvider{db: db}, nil
}

func (p *MariaDBProvider) Close() {
	p.db.Close()
}

func (p *MariaDBProvider) Load() error {
	if err := p.loadObjects(); err != nil {
		return fmt.Errorf("failed to load objects: %w", err)
	}
	if err := p.loadRules(); err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	p.Metadata = buildMetadata("unknown", p.Rules, p.Objects)
	return nil
}

func (p *MariaDBProvider) loadRules() error {
	rows, err := p.db.Query("SELECT rule_name, src_zone, dst_zone, src, dst, service, action, position, is_disabled FROM pan_rule ORDER BY position ASC")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rule model.Rule
		var srcZone, dstZone, src, dst, service, action sql.NullString
		var disabled sql.NullBool
		if err := rows.Scan(&rule.Name, &srcZone, &dstZone, &src, &dst, &service, &action, &rule.Position, &disabled); err != nil {
			return err
		}
		rule.Type = "security"
		rule.SrcZone = orDefault(srcZone, "any")
		rule.DstZone = orDefault(dstZone, "any")
		rule.Src = orDefault(src, "any")
		rule.Dst = orDefault(dst, "any")
		rule.Service = orDefault(service, "any")
		rule.Action = orDefault(action, "allow")
		rule.IsDisabled = disabled.Valid && disabled.Bool
		p.Rules = append(p.Rules, rule)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	sort.SliceStable(p.Rules, func(i, j int) bool {
		return p.Rules[i].Position < p.Rules[j].Position
	})
	return nil
}

func (p *MariaDBProvider) loadObjects() error {
	rows, err := p.db.Query("SELECT name, object_type, value FROM pan_object")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var obj model.Object
		var value sql.NullString
		if err := rows.Scan(&obj.Name, &obj.Type, &value); err != nil {
			return err
		}
		obj.Value = orDefault(value, "")
		p.Objects = append(p.Objects, obj)
	}
	return rows.Err()
}

func orDefault(s sql.NullString, def string) string {
	if s.Valid && s.String != "" {
		return s.String
	}
	return def
}
