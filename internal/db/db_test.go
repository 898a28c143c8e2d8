package db

import (
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestMySQLDSN_ForcesParseTime(t *testing.T) {
	for _, in := range []string{
		"bienesraices:secret@tcp(127.0.0.1:3306)/bienesraices",
		"bienesraices:secret@tcp(127.0.0.1:3306)/bienesraices?parseTime=false&charset=utf8mb4",
	} {
		out, err := mysqlDSN(in)
		if err != nil {
			t.Fatalf("mysqlDSN(%q): %v", in, err)
		}

		cfg, err := mysql.ParseDSN(out)
		if err != nil {
			t.Fatalf("reparse %q: %v", out, err)
		}
		if !cfg.ParseTime {
			t.Fatalf("parseTime not set in %q", out)
		}
		if cfg.DBName != "bienesraices" || cfg.User != "bienesraices" || cfg.Addr != "127.0.0.1:3306" {
			t.Fatalf("dsn lost its connection settings: %q", out)
		}
	}
}

func TestMySQLDSN_Invalid(t *testing.T) {
	if _, err := mysqlDSN("not a dsn"); err == nil {
		t.Fatalf("expected an error for a malformed dsn")
	}
}
