package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDSNIncludesConnectionParameters(t *testing.T) {
	cfg := Config{Host: "db.internal", Port: 1521, Service: "ORCLPDB1", User: "gateway", Password: "secret"}
	dsn := cfg.dsn()

	assert.Contains(t, dsn, "db.internal")
	assert.Contains(t, dsn, "1521")
	assert.Contains(t, dsn, "ORCLPDB1")
	assert.Contains(t, dsn, "gateway")
}

func TestConfigDSNWithSSL(t *testing.T) {
	cfg := Config{Host: "db.internal", Port: 1521, Service: "ORCLPDB1", User: "gateway", Password: "x", SSL: true}
	dsn := cfg.dsn()
	assert.Contains(t, dsn, "SSL")
}

func TestConfigDSNIncludesPrefetchRows(t *testing.T) {
	cfg := Config{Host: "db.internal", Port: 1521, Service: "ORCLPDB1", User: "gateway", Password: "x", FetchChunk: 1000}
	dsn := cfg.dsn()
	assert.Contains(t, dsn, "PREFETCH_ROWS")
	assert.Contains(t, dsn, "1000")
}

func TestConfigDSNOmitsPrefetchRowsWhenUnset(t *testing.T) {
	cfg := Config{Host: "db.internal", Port: 1521, Service: "ORCLPDB1", User: "gateway", Password: "x"}
	dsn := cfg.dsn()
	assert.NotContains(t, dsn, "PREFETCH_ROWS")
}
