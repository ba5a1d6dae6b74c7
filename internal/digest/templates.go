package digest

import (
	"html/template"
	"strings"

	"github.com/beacon-compliance/beacon-monitor/internal/models"
)

type digestStats struct {
	Total    int
	Critical int
	High     int
	Sources  int
}

type digestData struct {
	UserName string
	Date     string
	Stats    digestStats
	Critical []models.Alert
	High     []models.Alert
	Medium   []models.Alert
}

var digestFuncs = template.FuncMap{
	"dict": func(pairs ...any) map[string]any {
		m := make(map[string]any, len(pairs)/2)
		for i := 0; i+1 < len(pairs); i += 2 {
			key, _ := pairs[i].(string)
			m[key] = pairs[i+1]
		}
		return m
	},
}

var digestTmpl = template.Must(template.New("digest").Funcs(digestFuncs).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="margin:0;padding:0;background-color:#f4f4f5;font-family:Arial,Helvetica,sans-serif;">
  <div style="max-width:640px;margin:0 auto;padding:24px;">
    <div style="background-color:#1e293b;color:#ffffff;padding:24px;border-radius:8px 8px 0 0;">
      <h1 style="margin:0;font-size:20px;">Beacon Daily Digest</h1>
      <p style="margin:8px 0 0;color:#cbd5e1;font-size:13px;">{{.Date}}</p>
    </div>
    <div style="background-color:#ffffff;padding:24px;border-radius:0 0 8px 8px;">
      <p style="font-size:14px;color:#334155;">Hi {{.UserName}}, here is your compliance summary for the last 24 hours.</p>
      <table style="width:100%;border-collapse:collapse;margin:16px 0;">
        <tr>
          <td style="text-align:center;padding:12px;background-color:#f8fafc;border-radius:6px;">
            <div style="font-size:22px;font-weight:bold;color:#0f172a;">{{.Stats.Total}}</div>
            <div style="font-size:12px;color:#64748b;">Total Alerts</div>
          </td>
          <td style="width:8px;"></td>
          <td style="text-align:center;padding:12px;background-color:#fef2f2;border-radius:6px;">
            <div style="font-size:22px;font-weight:bold;color:#dc2626;">{{.Stats.Critical}}</div>
            <div style="font-size:12px;color:#64748b;">Critical</div>
          </td>
          <td style="width:8px;"></td>
          <td style="text-align:center;padding:12px;background-color:#fff7ed;border-radius:6px;">
            <div style="font-size:22px;font-weight:bold;color:#ea580c;">{{.Stats.High}}</div>
            <div style="font-size:12px;color:#64748b;">High Risk</div>
          </td>
          <td style="width:8px;"></td>
          <td style="text-align:center;padding:12px;background-color:#f8fafc;border-radius:6px;">
            <div style="font-size:22px;font-weight:bold;color:#0f172a;">{{.Stats.Sources}}</div>
            <div style="font-size:12px;color:#64748b;">Sources</div>
          </td>
        </tr>
      </table>
{{if eq .Stats.Total 0}}
      <div style="text-align:center;padding:32px 16px;color:#64748b;">
        <p style="font-size:15px;margin:0;">No new compliance alerts in the last 24 hours.</p>
        <p style="font-size:13px;margin:8px 0 0;">We will keep monitoring and let you know the moment something needs your attention.</p>
      </div>
{{else}}
{{template "section" dict "Title" "Critical Alerts" "Color" "#dc2626" "Alerts" .Critical}}
{{template "section" dict "Title" "High Risk" "Color" "#ea580c" "Alerts" .High}}
{{template "section" dict "Title" "Medium Risk" "Color" "#ca8a04" "Alerts" .Medium}}
{{end}}
      <p style="font-size:12px;color:#94a3b8;margin-top:24px;border-top:1px solid #e2e8f0;padding-top:16px;">
        You receive this digest because alert emails are enabled for your Beacon account.
      </p>
    </div>
  </div>
</body>
</html>
{{define "section"}}{{if .Alerts}}
      <h2 style="font-size:15px;color:{{.Color}};border-bottom:2px solid {{.Color}};padding-bottom:6px;margin:20px 0 12px;">{{.Title}} ({{len .Alerts}})</h2>
{{range .Alerts}}
      <div style="margin-bottom:12px;padding:12px;background-color:#f8fafc;border-left:3px solid {{$.Color}};border-radius:4px;">
        <div style="font-size:14px;font-weight:bold;color:#0f172a;">{{.Title}}</div>
        <div style="font-size:13px;color:#475569;margin-top:4px;">{{.Description}}</div>
        <div style="font-size:12px;color:#94a3b8;margin-top:6px;">{{.Source}} &middot; {{.Category}} &middot; Priority {{.Priority}}</div>
      </div>
{{end}}
{{end}}{{end}}`))

func renderDigest(data digestData) (string, error) {
	var buf strings.Builder
	if err := digestTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
