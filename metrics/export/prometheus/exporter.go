package prometheus

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gestionlocal/cuenta"
	"github.com/gestionlocal/cuenta/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

const auditDroppedName = "cuenta_audit_dropped_total"

type metricsSource interface {
	MetricsSnapshot() cuenta.MetricsSnapshot
	AuditDropped() uint64
}

// Options tunes the rendered output.
type Options struct {
	// OmitZero leaves out counters that never moved. Histograms are always
	// written so the bucket layout stays visible.
	OmitZero bool
}

// PrometheusExporter renders client metrics in Prometheus text exposition
// format, either over HTTP or into a node_exporter textfile.
type PrometheusExporter struct {
	source metricsSource
	opts   Options
}

// NewPrometheusExporter creates an exporter that reads from client.
func NewPrometheusExporter(client *cuenta.Client, opts ...Options) *PrometheusExporter {
	return NewPrometheusExporterFromSource(client, opts...)
}

// NewPrometheusExporterFromSource creates an exporter from any metrics source.
func NewPrometheusExporterFromSource(source metricsSource, opts ...Options) *PrometheusExporter {
	p := &PrometheusExporter{source: source}
	if len(opts) > 0 {
		p.opts = opts[0]
	}
	return p
}

type sample struct {
	suffix string
	le     string
	value  uint64
}

type family struct {
	name    string
	help    string
	kind    string
	samples []sample
}

// families snapshots the source once and groups it by metric family. A
// source with nothing recorded yields no families.
func (p *PrometheusExporter) families() []family {
	if p == nil || p.source == nil {
		return nil
	}
	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return nil
	}

	out := make([]family, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)+1)
	counter := func(name, help string, v uint64) {
		if v == 0 && p.opts.OmitZero {
			return
		}
		out = append(out, family{name: name, help: help, kind: "counter", samples: []sample{{value: v}}})
	}

	for _, def := range internaldefs.CounterDefs {
		counter(def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		buckets := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[def.ID]))
		f := family{name: def.Name, help: def.Help, kind: "histogram"}
		for i, le := range internaldefs.HistogramBounds {
			f.samples = append(f.samples, sample{suffix: "_bucket", le: le, value: buckets[i]})
		}
		// Snapshots carry no sum.
		f.samples = append(f.samples,
			sample{suffix: "_count", value: buckets[len(buckets)-1]},
			sample{suffix: "_sum"},
		)
		out = append(out, f)
	}
	counter(auditDroppedName, "Audit events lost because the dispatcher queue was full.", dropped)
	return out
}

// WriteTo writes the exposition text to w.
func (p *PrometheusExporter) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: bufio.NewWriter(w)}
	for _, f := range p.families() {
		fmt.Fprintf(cw, "# HELP %s %s\n# TYPE %s %s\n", f.name, escapeHelp(f.help), f.name, f.kind)
		for _, s := range f.samples {
			cw.put(f.name + s.suffix)
			if s.le != "" {
				cw.put(`{le="` + s.le + `"}`)
			}
			cw.put(" " + strconv.FormatUint(s.value, 10) + "\n")
		}
	}
	if err := cw.w.Flush(); err != nil && cw.err == nil {
		cw.err = err
	}
	return cw.n, cw.err
}

// Render returns the exposition text, or "" when nothing was recorded.
func (p *PrometheusExporter) Render() string {
	var b strings.Builder
	_, _ = p.WriteTo(&b)
	return b.String()
}

// Handler serves the exposition text.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = p.WriteTo(w)
	})
}

// WriteTextfile replaces path with the current exposition text. The file is
// written next to path and renamed so a collector never reads it half done.
func (p *PrometheusExporter) WriteTextfile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := p.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write metrics: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(b []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(b)
	c.n += int64(n)
	c.err = err
	return n, err
}

func (c *countingWriter) put(s string) {
	_, _ = c.Write([]byte(s))
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
