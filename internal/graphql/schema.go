package graphql

import (
	"context"
	"fmt"
	"strings"

	gql "github.com/graphql-go/graphql"

	"vpnrotator/internal/catalog"
	"vpnrotator/internal/domain"
	"vpnrotator/internal/rotation"
)

// StateSource is the read side of the rotation controller.
type StateSource interface {
	Snapshot() rotation.Snapshot
	Catalog() *catalog.Catalog
}

// HistoryFunc lists stored rotations, newest first. A nil HistoryFunc makes
// the history field resolve to an empty list.
type HistoryFunc func(ctx context.Context, limit int) ([]domain.RotationRecord, error)

const defaultHistoryLimit = 20

func NewSchema(source StateSource, history HistoryFunc) (gql.Schema, error) {
	if source == nil {
		return gql.Schema{}, fmt.Errorf("graphql: state source is required")
	}

	proxyType := gql.NewObject(gql.ObjectConfig{
		Name: "Proxy",
		Fields: gql.Fields{
			"id":          &gql.Field{Type: gql.NewNonNull(gql.ID)},
			"ip":          &gql.Field{Type: gql.NewNonNull(gql.String)},
			"port":        &gql.Field{Type: gql.NewNonNull(gql.Int)},
			"address":     &gql.Field{Type: gql.NewNonNull(gql.String)},
			"country":     &gql.Field{Type: gql.NewNonNull(gql.String)},
			"countryCode": &gql.Field{Type: gql.NewNonNull(gql.String)},
			"city":        &gql.Field{Type: gql.NewNonNull(gql.String)},
			"latency":     &gql.Field{Type: gql.NewNonNull(gql.Int)},
			"protocol":    &gql.Field{Type: gql.NewNonNull(gql.String)},
			"encryption":  &gql.Field{Type: gql.NewNonNull(gql.String)},
		},
	})

	reportType := gql.NewObject(gql.ObjectConfig{
		Name: "SecurityReport",
		Fields: gql.Fields{
			"riskLevel":          &gql.Field{Type: gql.NewNonNull(gql.String)},
			"summary":            &gql.Field{Type: gql.NewNonNull(gql.String)},
			"encryptionAnalysis": &gql.Field{Type: gql.NewNonNull(gql.String)},
		},
	})

	stateType := gql.NewObject(gql.ObjectConfig{
		Name: "ConnectionState",
		Fields: gql.Fields{
			"state":           &gql.Field{Type: gql.NewNonNull(gql.String)},
			"selectedProxyId": &gql.Field{Type: gql.ID},
			"proxy":           &gql.Field{Type: proxyType},
			"timer":           &gql.Field{Type: gql.NewNonNull(gql.Int)},
			"countdown":       &gql.Field{Type: gql.NewNonNull(gql.String)},
			"interval":        &gql.Field{Type: gql.NewNonNull(gql.Int)},
			"autoRotate":      &gql.Field{Type: gql.NewNonNull(gql.Boolean)},
			"analyzing":       &gql.Field{Type: gql.NewNonNull(gql.Boolean)},
			"report":          &gql.Field{Type: reportType},
		},
	})

	rotationType := gql.NewObject(gql.ObjectConfig{
		Name: "Rotation",
		Fields: gql.Fields{
			"requestId":   &gql.Field{Type: gql.NewNonNull(gql.ID)},
			"reason":      &gql.Field{Type: gql.NewNonNull(gql.String)},
			"fromProxyId": &gql.Field{Type: gql.String},
			"proxyId":     &gql.Field{Type: gql.NewNonNull(gql.ID)},
			"address":     &gql.Field{Type: gql.NewNonNull(gql.String)},
			"protocol":    &gql.Field{Type: gql.NewNonNull(gql.String)},
			"location":    &gql.Field{Type: gql.NewNonNull(gql.String)},
			"rotatedAt":   &gql.Field{Type: gql.DateTime},
		},
	})

	queryType := gql.NewObject(gql.ObjectConfig{
		Name: "Query",
		Fields: gql.Fields{
			"proxies": &gql.Field{
				Type: gql.NewNonNull(gql.NewList(gql.NewNonNull(proxyType))),
				Args: gql.FieldConfigArgument{
					"country":  &gql.ArgumentConfig{Type: gql.String},
					"protocol": &gql.ArgumentConfig{Type: gql.String},
				},
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					country, _ := p.Args["country"].(string)
					protocol, _ := p.Args["protocol"].(string)
					return buildProxyList(source.Catalog().All(), country, protocol), nil
				},
			},
			"proxy": &gql.Field{
				Type: proxyType,
				Args: gql.FieldConfigArgument{
					"id": &gql.ArgumentConfig{Type: gql.NewNonNull(gql.ID)},
				},
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					proxy, err := source.Catalog().Get(id)
					if err != nil {
						return nil, nil
					}
					return buildProxy(proxy), nil
				},
			},
			"state": &gql.Field{
				Type: gql.NewNonNull(stateType),
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return buildState(source.Snapshot()), nil
				},
			},
			"history": &gql.Field{
				Type: gql.NewNonNull(gql.NewList(gql.NewNonNull(rotationType))),
				Args: gql.FieldConfigArgument{
					"limit": &gql.ArgumentConfig{Type: gql.Int},
				},
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					if history == nil {
						return []interface{}{}, nil
					}
					limit := defaultHistoryLimit
					if raw, ok := p.Args["limit"].(int); ok && raw > 0 {
						limit = raw
					}
					records, err := history(p.Context, limit)
					if err != nil {
						return nil, err
					}
					return buildHistory(records), nil
				},
			},
		},
	})

	return gql.NewSchema(gql.SchemaConfig{
		Query: queryType,
	})
}

func buildProxy(p domain.ProxyDescriptor) map[string]interface{} {
	return map[string]interface{}{
		"id":          p.ID,
		"ip":          p.IP,
		"port":        int(p.Port),
		"address":     p.Address(),
		"country":     p.Country,
		"countryCode": p.CountryCode,
		"city":        p.City,
		"latency":     p.Latency,
		"protocol":    string(p.Protocol),
		"encryption":  string(p.Encryption),
	}
}

func buildProxyList(proxies []domain.ProxyDescriptor, country, protocol string) []interface{} {
	items := make([]interface{}, 0, len(proxies))
	for _, p := range proxies {
		if country != "" && !strings.EqualFold(p.Country, country) && !strings.EqualFold(p.CountryCode, country) {
			continue
		}
		if protocol != "" && !strings.EqualFold(string(p.Protocol), protocol) {
			continue
		}
		items = append(items, buildProxy(p))
	}
	return items
}

func buildState(s rotation.Snapshot) map[string]interface{} {
	state := map[string]interface{}{
		"state":      string(s.Connection),
		"timer":      s.Timer,
		"countdown":  rotation.FormatCountdown(s.Timer),
		"interval":   s.Interval,
		"autoRotate": s.AutoRotate,
		"analyzing":  s.Analyzing,
	}
	if s.SelectedID != "" {
		state["selectedProxyId"] = s.SelectedID
	}
	if s.Proxy != nil {
		state["proxy"] = buildProxy(*s.Proxy)
	}
	if s.Report != nil {
		state["report"] = map[string]interface{}{
			"riskLevel":          string(s.Report.RiskLevel),
			"summary":            s.Report.Summary,
			"encryptionAnalysis": s.Report.EncryptionAnalysis,
		}
	}
	return state
}

func buildHistory(records []domain.RotationRecord) []interface{} {
	items := make([]interface{}, 0, len(records))
	for _, r := range records {
		item := map[string]interface{}{
			"requestId": r.RequestID,
			"reason":    r.Reason,
			"proxyId":   r.ProxyID,
			"address":   r.Address,
			"protocol":  r.Protocol,
			"location":  r.City + ", " + r.Country,
			"rotatedAt": r.CreatedAt,
		}
		if r.FromProxyID != "" {
			item["fromProxyId"] = r.FromProxyID
		}
		items = append(items, item)
	}
	return items
}
