package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/probelab/vigil/internal/threshold"
	"github.com/probelab/vigil/internal/workload"
)

// maxLeakRows bounds the leak table in the HTML report.
const maxLeakRows = 25

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	Summary          workload.Summary
	History          []DataPoint
	ThresholdResults []threshold.Result
	ThresholdSummary *ThresholdSummary
	HistoryJSON      string
	OpStats          []workload.OpStats
	LeakRecords      []workload.LeakEntry
	LeakOverflow     int
	UtilizationPct   float64
	Metadata         ReportMetadata
}

// ThresholdSummary aggregates threshold outcomes for rendering.
type ThresholdSummary struct {
	Total   int
	Passed  int
	Failed  int
	Results []ThresholdResultJSON
}

// ThresholdResultJSON is a render-friendly view of one threshold result.
type ThresholdResultJSON struct {
	Threshold string
	Metric    string
	Aggregate string
	Operator  string
	Expected  float64
	Actual    float64
	Pass      bool
}

// ReportMetadata carries run configuration details into the report.
type ReportMetadata struct {
	ConfigFile string
	Ops        []ConfiguredOp
}

// ConfiguredOp describes one workload op as configured for the run.
type ConfiguredOp struct {
	Name   string
	Kind   string
	Size   int
	Count  int
	Weight int
	Leak   float64
}

// GenerateHTMLReport generates a standalone HTML report with embedded charts.
func GenerateHTMLReport(w io.Writer, sum workload.Summary, history []DataPoint, thresholdResults []threshold.Result, metadata ReportMetadata) error {
	// Prepare threshold summary
	var thresholdSummary *ThresholdSummary
	if len(thresholdResults) > 0 {
		thresholdSummary = &ThresholdSummary{
			Total:   len(thresholdResults),
			Results: make([]ThresholdResultJSON, len(thresholdResults)),
		}
		for i, tr := range thresholdResults {
			thresholdSummary.Results[i] = ThresholdResultJSON{
				Threshold: tr.Threshold.Raw,
				Metric:    tr.Threshold.Metric,
				Aggregate: tr.Threshold.Aggregate,
				Operator:  tr.Threshold.Operator,
				Expected:  tr.Threshold.Value,
				Actual:    tr.Actual,
				Pass:      tr.Pass,
			}
			if tr.Pass {
				thresholdSummary.Passed++
			} else {
				thresholdSummary.Failed++
			}
		}
	}

	// Prepare op stats sorted by op count
	opStats := make([]workload.OpStats, len(sum.Ops))
	copy(opStats, sum.Ops)
	sort.Slice(opStats, func(i, j int) bool {
		return opStats[i].Count > opStats[j].Count
	})

	leakRecords := sum.Leaks.Records
	if len(leakRecords) > maxLeakRows {
		leakRecords = leakRecords[:maxLeakRows]
	}

	// Convert history to JSON for embedding in HTML
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt:      time.Now().Format(time.RFC3339),
		Summary:          sum,
		History:          history,
		ThresholdResults: thresholdResults,
		ThresholdSummary: thresholdSummary,
		HistoryJSON:      string(historyJSON),
		OpStats:          opStats,
		LeakRecords:      leakRecords,
		LeakOverflow:     sum.Leaks.Count - len(leakRecords),
		UtilizationPct:   sum.Memory.Arena.Utilization * 100,
		Metadata:         metadata,
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatPercent": func(part, total int64) string {
			if total == 0 {
				return "0.0"
			}
			return fmt.Sprintf("%.1f", (float64(part)/float64(total))*100)
		},
		"formatBytes": func(n any) string {
			switch v := n.(type) {
			case int:
				return humanBytes(int64(v))
			case int64:
				return humanBytes(v)
			case uint64:
				return humanBytes(int64(v))
			}
			return fmt.Sprint(n)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Vigil Arena Probe Report</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #0ea5e9 0%, #6366f1 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 {
            font-size: 2rem;
            margin-bottom: 10px;
        }
        header .meta {
            opacity: 0.9;
            font-size: 0.9rem;
        }
        .content {
            padding: 40px;
        }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #6366f1;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value {
            font-size: 2rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .card .subvalue {
            font-size: 0.85rem;
            color: #6c757d;
            margin-top: 5px;
        }
        .card.success {
            border-left-color: #10b981;
        }
        .card.error {
            border-left-color: #ef4444;
        }
        .card.warning {
            border-left-color: #f59e0b;
        }
        .section {
            margin-bottom: 40px;
        }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        .chart-container {
            background: white;
            border-radius: 8px;
            padding: 20px;
            margin-bottom: 30px;
            border: 1px solid #e5e7eb;
        }
        .chart-container h3 {
            font-size: 1.1rem;
            margin-bottom: 15px;
            color: #4b5563;
        }
        .chart {
            width: 100%;
            height: 300px;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            background: white;
        }
        th, td {
            text-align: left;
            padding: 12px;
            border-bottom: 1px solid #e5e7eb;
        }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }
        tr:hover {
            background: #f8f9fa;
        }
        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 12px;
            font-size: 0.85rem;
            font-weight: 600;
        }
        .badge-success {
            background: #d1fae5;
            color: #065f46;
        }
        .badge-error {
            background: #fee2e2;
            color: #991b1b;
        }
        .latency-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
            gap: 15px;
            margin-top: 20px;
        }
        .latency-item {
            background: #f8f9fa;
            padding: 15px;
            border-radius: 6px;
            text-align: center;
        }
        .latency-item .label {
            font-size: 0.85rem;
            color: #6c757d;
            margin-bottom: 5px;
        }
        .latency-item .value {
            font-size: 1.3rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .no-data {
            text-align: center;
            padding: 40px;
            color: #6c757d;
            font-style: italic;
        }
        .mono {
            font-family: 'SF Mono', SFMono-Regular, Consolas, 'Liberation Mono', monospace;
            font-size: 0.9rem;
        }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>🔎 Vigil Arena Probe Report</h1>
            {{if .Metadata.ConfigFile}}
            <div class="meta" style="margin-top: 5px;">Config: {{.Metadata.ConfigFile}}</div>
            {{end}}
            <div class="meta">Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Summary.Duration}}</div>
        </header>

        <div class="content">
            <!-- Summary Cards -->
            <div class="grid">
                <div class="card">
                    <h3>Total Ops</h3>
                    <div class="value">{{.Summary.Total}}</div>
                </div>
                <div class="card success">
                    <h3>Successful</h3>
                    <div class="value">{{.Summary.Successes}}</div>
                    <div class="subvalue">{{formatPercent .Summary.Successes .Summary.Total}}%</div>
                </div>
                <div class="card error">
                    <h3>Failed</h3>
                    <div class="value">{{.Summary.Failures}}</div>
                    <div class="subvalue">{{formatPercent .Summary.Failures .Summary.Total}}%</div>
                </div>
                <div class="card">
                    <h3>Ops/sec</h3>
                    <div class="value">{{formatFloat .Summary.OpsPerSec}}</div>
                </div>
                <div class="card {{if gt .Summary.Leaks.Count 0}}error{{else}}success{{end}}">
                    <h3>Leaked Allocations</h3>
                    <div class="value">{{.Summary.Leaks.Count}}</div>
                    <div class="subvalue">{{formatBytes .Summary.Leaks.Bytes}} across {{.Summary.Leaks.Arenas}} arenas</div>
                </div>
                <div class="card warning">
                    <h3>Arena Memory</h3>
                    <div class="value">{{formatBytes .Summary.Memory.Arena.ActiveBytes}}</div>
                    <div class="subvalue">{{.Summary.Memory.Arena.Chunks}} chunks, {{formatFloat .UtilizationPct}}% bumped</div>
                </div>
            </div>

            <!-- Charts Section -->
            {{if .History}}
            <div class="section">
                <h2>Run Over Time</h2>

                <div class="chart-container">
                    <h3>Ops Per Second</h3>
                    <div id="ops-chart" class="chart"></div>
                </div>

                <div class="chart-container">
                    <h3>Arena Memory (MiB)</h3>
                    <div id="memory-chart" class="chart"></div>
                </div>

                <div class="chart-container">
                    <h3>Latency Percentiles (ms)</h3>
                    <div id="latency-chart" class="chart"></div>
                </div>
            </div>
            {{end}}

            <!-- Latency Statistics -->
            <div class="section">
                <h2>Latency Statistics</h2>
                <div class="latency-grid">
                    <div class="latency-item">
                        <div class="label">Min</div>
                        <div class="value">{{formatDuration .Summary.Latency.Min}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">Max</div>
                        <div class="value">{{formatDuration .Summary.Latency.Max}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">Mean</div>
                        <div class="value">{{formatDuration .Summary.Latency.Mean}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P50</div>
                        <div class="value">{{formatDuration .Summary.Latency.P50}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P90</div>
                        <div class="value">{{formatDuration .Summary.Latency.P90}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P95</div>
                        <div class="value">{{formatDuration .Summary.Latency.P95}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P99</div>
                        <div class="value">{{formatDuration .Summary.Latency.P99}}</div>
                    </div>
                </div>
            </div>

            <!-- Thresholds -->
            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Threshold</th>
                            <th>Metric</th>
                            <th>Expected</th>
                            <th>Actual</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .ThresholdSummary.Results}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{.Metric}} ({{.Aggregate}})</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">✓ PASS</span>
                                {{else}}
                                <span class="badge badge-error">✗ FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <!-- Op Breakdown -->
            {{if .OpStats}}
            <div class="section">
                <h2>Op Breakdown</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Op</th>
                            <th>Ops</th>
                            <th>Failures</th>
                            <th>Mean</th>
                            <th>P99 Latency</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .OpStats}}
                        <tr>
                            <td><strong>{{.Name}}</strong></td>
                            <td>{{.Count}} ({{formatPercent .Count $.Summary.Total}}%)</td>
                            <td>{{.Failures}}</td>
                            <td>{{formatDuration .Mean}}</td>
                            <td>{{formatDuration .P99}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <!-- Leak Report -->
            {{if .LeakRecords}}
            <div class="section">
                <h2>Leaked Allocations ({{.Summary.Leaks.Count}})</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Address</th>
                            <th>Size</th>
                            <th>Age (ms)</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .LeakRecords}}
                        <tr>
                            <td class="mono">{{.Addr}}</td>
                            <td>{{formatBytes .Size}}</td>
                            <td>{{formatFloat .AgeMs}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
                {{if gt .LeakOverflow 0}}
                <div class="no-data">... and {{.LeakOverflow}} more leaked allocations</div>
                {{end}}
            </div>
            {{end}}

            <!-- Configuration Details -->
            {{if .Metadata.Ops}}
            <div class="section">
                <h2>Configured Ops</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Name</th>
                            <th>Kind</th>
                            <th>Block Size</th>
                            <th>Blocks/Op</th>
                            <th>Weight</th>
                            <th>Leak Ratio</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Metadata.Ops}}
                        <tr>
                            <td>{{if .Name}}<strong>{{.Name}}</strong>{{else}}<em>(default)</em>{{end}}</td>
                            <td><span class="badge">{{.Kind}}</span></td>
                            <td>{{formatBytes .Size}}</td>
                            <td>{{.Count}}</td>
                            <td>{{.Weight}}</td>
                            <td>{{formatFloat .Leak}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>

    {{if .History}}
    <script>
        // Prepare data for charts
        const historyJSON = {{.HistoryJSON}};
        const history = JSON.parse(historyJSON);

        if (history && history.length > 0) {
            // Extract timestamps and convert to seconds from start
            const startTime = new Date(history[0].timestamp).getTime();
            const timestamps = history.map(d => (new Date(d.timestamp).getTime() - startTime) / 1000);

            // Throughput Chart
            const opsData = [
                timestamps,
                history.map(d => d.ops_per_sec)
            ];

            new uPlot({
                title: "Ops Per Second",
                width: document.getElementById('ops-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Time (s)" },
                    {
                        label: "Ops/sec",
                        stroke: "#6366f1",
                        fill: "rgba(99, 102, 241, 0.1)",
                        width: 2
                    }
                ],
                axes: [
                    { label: "Time (seconds)" },
                    { label: "Ops/sec" }
                ]
            }, opsData, document.getElementById('ops-chart'));

            // Memory Chart
            const memData = [
                timestamps,
                history.map(d => d.active_bytes / 1048576),
                history.map(d => d.chunks)
            ];

            new uPlot({
                title: "Arena Memory",
                width: document.getElementById('memory-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Time (s)" },
                    {
                        label: "Active MiB",
                        stroke: "#0ea5e9",
                        fill: "rgba(14, 165, 233, 0.1)",
                        width: 2
                    },
                    {
                        label: "Chunks",
                        stroke: "#f59e0b",
                        width: 2
                    }
                ],
                axes: [
                    { label: "Time (seconds)" },
                    { label: "Active MiB / Chunks" }
                ]
            }, memData, document.getElementById('memory-chart'));

            // Latency Chart
            const latencyData = [
                timestamps,
                history.map(d => d.p50_latency_ms),
                history.map(d => d.p95_latency_ms),
                history.map(d => d.p99_latency_ms)
            ];

            new uPlot({
                title: "Latency Percentiles",
                width: document.getElementById('latency-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Time (s)" },
                    {
                        label: "P50",
                        stroke: "#10b981",
                        width: 2
                    },
                    {
                        label: "P95",
                        stroke: "#f59e0b",
                        width: 2
                    },
                    {
                        label: "P99",
                        stroke: "#ef4444",
                        width: 2
                    }
                ],
                axes: [
                    { label: "Time (seconds)" },
                    { label: "Latency (ms)" }
                ]
            }, latencyData, document.getElementById('latency-chart'));
        }
    </script>
    {{end}}
</body>
</html>
`
