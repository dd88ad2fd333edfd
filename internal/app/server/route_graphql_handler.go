package server

import (
	"net/http"

	gqlhandler "github.com/graphql-go/handler"

	gqlschema "vpnrotator/internal/graphql"
)

func newGraphQLHandler(source gqlschema.StateSource, history gqlschema.HistoryFunc) (http.Handler, error) {
	schema, err := gqlschema.NewSchema(source, history)
	if err != nil {
		return nil, err
	}

	base := gqlhandler.New(&gqlhandler.Config{
		Schema:   &schema,
		Pretty:   true,
		GraphiQL: false,
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		base.ContextHandler(r.Context(), w, r)
	}), nil
}
