package httpapi

import (
	"html/template"
	"net/http"
)

var indexTemplate = template.Must(template.New("index").Parse(`<html>
    <head>
        <title>TVL API</title>
        <style>
            body { font-family: Arial, sans-serif; margin: 20px; }
            h1 { color: #2c3e50; }
            .endpoint { background: #f8f9fa; padding: 10px; margin: 10px 0; border-radius: 5px; }
            code { background: #e9ecef; padding: 2px 5px; border-radius: 3px; }
        </style>
    </head>
    <body>
        <h1>TVL API</h1>
        <p>This API serves TVL data sourced from DeFi Llama.</p>

        <div class="endpoint">
            <h3>TVL for a single blockchain:</h3>
            <code>GET /api/tvl/{chain}</code>
            <p>Example: <a href="/api/tvl/Ethereum">/api/tvl/Ethereum</a></p>
        </div>

        <div class="endpoint">
            <h3>TVL for all blockchains:</h3>
            <code>GET /api/tvl/all</code>
            <p>Example: <a href="/api/tvl/all">/api/tvl/all</a></p>
        </div>

        <div class="endpoint">
            <h3>Download data as CSV:</h3>
            <code>GET /api/tvl/csv</code>
            <p>Combined TVL history for all chains: <a href="/api/tvl/csv">/api/tvl/csv</a></p>
        </div>

        <h3>Supported blockchains:</h3>
        <ul>
            {{range .Chains}}<li><a href="/api/tvl/{{.}}">{{.}}</a></li>
            {{end}}
        </ul>
    </body>
</html>
`))

func (h *handler) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ Chains []string }{Chains: h.svc.Chains()}
	if err := indexTemplate.Execute(w, data); err != nil {
		h.log.WithError(err).Error("render index failed")
	}
}
