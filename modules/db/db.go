// Package db implements Feral's "db" native module: an opaque `dbconn`
// native value wrapping database/sql, selecting a driver by DSN scheme
// (modernc.org/sqlite default, github.com/go-sql-driver/mysql and
// github.com/lib/pq as alternates), tied to the VNative destructor hook
// in values.destroy.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/rnshah9/feral/ferrors"
	"github.com/rnshah9/feral/nativeabi"
	"github.com/rnshah9/feral/values"
)

// Conn is the VNative payload for a `dbconn` value: it implements
// Destroy() so values.Dref closes the pool when the last reference goes
// away.
type Conn struct {
	db *sql.DB
}

func (c *Conn) Destroy() {
	if c.db != nil {
		c.db.Close()
	}
}

var dbconnTypeID = values.NewTypeID()

// Register installs db_open/db_query/db_exec/db_close into dst.
func Register(dst nativeabi.Registrar) error {
	return nativeabi.Register(dst,
		nativeabi.Fn("db_open", 1, false, fnOpen),
		nativeabi.Fn("db_query", 2, true, fnQuery),
		nativeabi.Fn("db_exec", 2, true, fnExec),
		nativeabi.Fn("db_close", 1, false, fnClose),
	)
}

// driverFor maps a DSN's scheme prefix to a database/sql driver name,
// defaulting to sqlite when the DSN has no scheme.
func driverFor(dsn string) (driver, trimmed string) {
	switch {
	case strings.HasPrefix(dsn, "mysql://"):
		return "mysql", strings.TrimPrefix(dsn, "mysql://")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn
	default:
		return "sqlite", dsn
	}
}

func fnOpen(fd *values.FnData) (*values.Value, error) {
	if len(fd.Args) != 1 || fd.Args[0].Variant != values.VStr {
		return nil, ferrors.New(ferrors.DispatchError, fd.SrcID, fd.Idx, "db_open(dsn) expects a string dsn")
	}
	dsn := values.ToStr(fd.Args[0])
	driver, conn := driverFor(dsn)
	sqlDB, err := sql.Open(driver, conn)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ResourceError, fd.SrcID, fd.Idx, err, "db_open %q", dsn)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, ferrors.Wrap(ferrors.ResourceError, fd.SrcID, fd.Idx, err, "db_open %q: ping failed", dsn)
	}
	v := values.New(values.VNative, dbconnTypeID, &Conn{db: sqlDB}, values.Provenance{SrcID: fd.SrcID, Idx: fd.Idx})
	return v, nil
}

func connOf(fd *values.FnData, argIdx int) (*sql.DB, error) {
	if argIdx >= len(fd.Args) || fd.Args[argIdx].TypeID != dbconnTypeID {
		return nil, ferrors.New(ferrors.DispatchError, fd.SrcID, fd.Idx, "expected a dbconn argument")
	}
	return fd.Args[argIdx].Payload.(*Conn).db, nil
}

func fnQuery(fd *values.FnData) (*values.Value, error) {
	sqlDB, err := connOf(fd, 0)
	if err != nil {
		return nil, err
	}
	if len(fd.Args) < 2 || fd.Args[1].Variant != values.VStr {
		return nil, ferrors.New(ferrors.DispatchError, fd.SrcID, fd.Idx, "db_query(conn, sql, ...) expects a string query")
	}
	query := values.ToStr(fd.Args[1])
	args := make([]interface{}, len(fd.Args)-2)
	for i, a := range fd.Args[2:] {
		args[i] = values.ToStr(a)
	}

	rows, err := sqlDB.Query(query, args...)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ResourceError, fd.SrcID, fd.Idx, err, "db_query %q", query)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ResourceError, fd.SrcID, fd.Idx, err, "db_query: reading columns")
	}

	result := values.NewVec(nil)
	vec := result.Payload.(*values.Vec)
	for rows.Next() {
		scan := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range scan {
			ptrs[i] = &scan[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, ferrors.Wrap(ferrors.ResourceError, fd.SrcID, fd.Idx, err, "db_query: scanning row")
		}
		row := values.NewMapPayload()
		for i, col := range cols {
			row.Set(col, values.NewStr(toDisplay(scan[i])))
		}
		rowVal := values.NewMap(row)
		vec.Push(rowVal)
	}
	return result, nil
}

func toDisplay(v interface{}) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func fnExec(fd *values.FnData) (*values.Value, error) {
	sqlDB, err := connOf(fd, 0)
	if err != nil {
		return nil, err
	}
	if len(fd.Args) < 2 || fd.Args[1].Variant != values.VStr {
		return nil, ferrors.New(ferrors.DispatchError, fd.SrcID, fd.Idx, "db_exec(conn, sql, ...) expects a string statement")
	}
	stmt := values.ToStr(fd.Args[1])
	args := make([]interface{}, len(fd.Args)-2)
	for i, a := range fd.Args[2:] {
		args[i] = values.ToStr(a)
	}
	res, err := sqlDB.Exec(stmt, args...)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ResourceError, fd.SrcID, fd.Idx, err, "db_exec %q", stmt)
	}
	n, _ := res.RowsAffected()
	return values.NewInt(n), nil
}

func fnClose(fd *values.FnData) (*values.Value, error) {
	sqlDB, err := connOf(fd, 0)
	if err != nil {
		return nil, err
	}
	sqlDB.Close()
	return values.Nil, nil
}
