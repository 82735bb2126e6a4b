package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/killindicator/extension/internal/config"
	"github.com/killindicator/extension/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineOf(p *influxdb2_write.Point) string {
	return influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
}

func TestIndicatorPoint(t *testing.T) {
	at := time.Unix(0, 1000)
	p := IndicatorPoint(core.IndicatorEvent{
		Entity: 7,
		Delay:  240,
		Source: core.SourceReconciled,
		Item:   &core.Item{Name: "Bataldo"},
	}, "client", at)

	line := lineOf(p)
	assert.True(t, strings.HasPrefix(line, "kill_indicator,"))
	for _, part := range []string{"source=reconciled", "role=client", "item=Bataldo", "delay_ms=240i", "entity=7i", " 1000"} {
		assert.Contains(t, line, part)
	}
}

func TestKillPoint(t *testing.T) {
	at := time.Unix(0, 5)
	p := KillPoint(core.KillEvent{Entity: 3, Channel: core.ChannelExplosive}, "", at)

	line := lineOf(p)
	assert.True(t, strings.HasPrefix(line, "kill,"))
	assert.Contains(t, line, "channel=explosive")
	assert.Contains(t, line, "attributed=false")
	assert.Contains(t, line, "entity=3i")
	assert.NotContains(t, line, "role=")
}

func TestProcessMetricData(t *testing.T) {
	tests := []struct {
		name    string
		data    []string
		want    []string
		wantErr bool
	}{
		{
			name: "tags and fields",
			data: []string{"frame", "tag::map::Colony", "field::float::ms::16.5", "field::int::draws::3", "field::string::phase::late"},
			want: []string{"frame,map=Colony ", "draws=3i", "ms=16.5", `phase="late"`},
		},
		{name: "bad int", data: []string{"m", "field::int::x::1.5"}, wantErr: true},
		{name: "bad float", data: []string{"m", "field::float::x::abc"}, wantErr: true},
		{name: "no measurement", data: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ProcessMetricData(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			p.SetTime(time.Unix(0, 1))
			line := lineOf(p)
			for _, part := range tt.want {
				assert.Contains(t, line, part)
			}
		})
	}
}

func TestProcessMetricData_IgnoresMalformedParts(t *testing.T) {
	p, err := ProcessMetricData([]string{"m", "tag::only", "field::int::x", "junk", "field::int::n::1"})
	require.NoError(t, err)

	assert.Equal(t, "m", p.Name())
	assert.Empty(t, p.TagList())
	require.Len(t, p.FieldList(), 1)
	assert.Equal(t, "n", p.FieldList()[0].Key)
	assert.Equal(t, int64(1), p.FieldList()[0].Value)

	line := lineOf(p)
	assert.Contains(t, line, "n=1i")
	assert.NotContains(t, line, "x=")
	assert.NotContains(t, line, "only")
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	assert.Error(t, m.Connect(context.Background()))
	assert.Error(t, m.WritePoint(KillPoint(core.KillEvent{}, "", time.Now())))
}

func TestConnect_FallsBackToBackupFile(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1",
		Org:      "killindicator",
		Bucket:   "kill_indicators",
	}, zerolog.Nop(), backup)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)

	m.SetRole("authority")
	require.NoError(t, m.RecordKill(core.KillEvent{Entity: 1, Player: &core.Agent{ID: 2}}))
	require.NoError(t, m.RecordIndicator(core.IndicatorEvent{Entity: 1, Delay: 10}))
	require.NoError(t, m.Flush())
	require.NoError(t, m.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "kill,"))
	assert.Contains(t, lines[0], "attributed=true")
	assert.Contains(t, lines[0], "role=authority")
	assert.True(t, strings.HasPrefix(lines[1], "kill_indicator,"))
	assert.Contains(t, lines[1], "source=predicted")
}
