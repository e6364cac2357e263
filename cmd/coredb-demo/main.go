// Command coredb-demo exercises the storage core end to end: it registers
// a heap table in the catalog, inserts tuples under a transaction, scans
// the table, aborts a second transaction to show undo, and prints a join
// order chosen by the optimizer. It does not use the B+Tree index.
package main

import (
	"fmt"
	"os"

	"coredb/buffer"
	"coredb/catalog"
	"coredb/config"
	"coredb/heap"
	"coredb/lock"
	"coredb/logging"
	"coredb/optimizer"
	"coredb/storage"
	"coredb/tuple"
	"coredb/txid"
	"coredb/types"
)

func must(err error) {
	if err != nil {
		logging.Log.WithError(err).Fatal("demo run failed")
	}
}

func main() {
	cfg := config.New()
	storage.SetPageSize(cfg.PageSize)

	dir, err := os.MkdirTemp("", "coredb-demo")
	must(err)
	defer os.RemoveAll(dir)

	desc := tuple.NewDesc(
		tuple.FieldDesc{Name: "id", Type: types.IntType},
		tuple.FieldDesc{Name: "name", Type: types.StringType(16)},
	)

	tableID := catalog.TableID(dir + "/people.heap")
	hf, err := heap.Open(dir+"/people.heap", tableID, desc)
	must(err)

	cat := catalog.New()
	cat.Add("people", "id", hf, tableID)

	locks := lock.NewManager()
	pool := buffer.New(cfg.BufferCapacity, cat, locks)

	tid := txid.New()
	for i := 0; i < 25; i++ {
		t := tuple.NewTuple(desc)
		must(t.SetField(0, types.Int(i)))
		must(t.SetField(1, types.String(fmt.Sprintf("person-%d", i))))
		_, err := hf.InsertTuple(pool, tid, t)
		must(err)
	}
	must(pool.TransactionComplete(tid, true))

	readTid := txid.New()
	cursor, err := hf.Scan(pool, readTid)
	must(err)
	count := 0
	for {
		_, ok, err := cursor.Next()
		must(err)
		if !ok {
			break
		}
		count++
	}
	must(pool.TransactionComplete(readTid, true))
	fmt.Printf("heap scan after commit: %d tuples\n", count)

	abortTid := txid.New()
	t := tuple.NewTuple(desc)
	must(t.SetField(0, types.Int(999)))
	must(t.SetField(1, types.String("ghost")))
	_, err = hf.InsertTuple(pool, abortTid, t)
	must(err)
	must(pool.TransactionComplete(abortTid, false))

	verifyTid := txid.New()
	cursor, err = hf.Scan(pool, verifyTid)
	must(err)
	countAfterAbort := 0
	for {
		_, ok, err := cursor.Next()
		must(err)
		if !ok {
			break
		}
		countAfterAbort++
	}
	must(pool.TransactionComplete(verifyTid, true))
	fmt.Printf("heap scan after abort: %d tuples (unchanged)\n", countAfterAbort)

	opt := optimizer.New(cfg.IoCostPerPage)
	plan := opt.Order(
		[]optimizer.TableStat{
			{Name: "people", ScanCost: 100, Cardinality: 25},
			{Name: "orders", ScanCost: 400, Cardinality: 500},
			{Name: "items", ScanCost: 200, Cardinality: 100},
		},
		[]optimizer.Predicate{
			{Left: "people", Right: "orders", Selectivity: 0.1},
			{Left: "orders", Right: "items", Selectivity: 0.2},
		},
	)
	fmt.Printf("chosen join order: %v (estimated cost %.0f)\n", plan.Order, plan.Cost)
}
