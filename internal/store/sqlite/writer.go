// Package sqlite mirrors merged output rows into a local SQLite database so
// downloads can be queried without re-parsing CSV files. The sink is
// optional and off by default.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"dukadump/internal/model"
)

const (
	batchSize  = 500
	flushDelay = 200 * time.Millisecond
)

// Writer is a single-goroutine SQLite writer with transaction batching.
// Rows arrive through AddTick/AddCandle and are committed every batchSize
// rows or flushDelay, whichever comes first.
type Writer struct {
	db   *sql.DB
	ch   chan row
	done sync.WaitGroup
}

type row struct {
	symbol string
	period int64
	tick   *model.Tick
	candle *model.Candle
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens (or creates) the database in WAL mode and starts the writer
// goroutine.
func New(path string) (*Writer, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer, single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	w := &Writer{db: db, ch: make(chan row, 4*batchSize)}
	w.done.Add(1)
	go w.run()

	log.Printf("[sqlite] opened database at %s", path)
	return w, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ticks (
			symbol     TEXT    NOT NULL,
			ts_ms      INTEGER NOT NULL,
			ask        REAL    NOT NULL,
			bid        REAL    NOT NULL,
			ask_volume INTEGER,
			bid_volume INTEGER,
			PRIMARY KEY (symbol, ts_ms)
		);

		CREATE TABLE IF NOT EXISTS candles (
			symbol  TEXT    NOT NULL,
			period  INTEGER NOT NULL,
			ts      INTEGER NOT NULL,
			open    REAL    NOT NULL,
			high    REAL    NOT NULL,
			low     REAL    NOT NULL,
			close   REAL    NOT NULL,
			volume  REAL,
			PRIMARY KEY (symbol, period, ts)
		);
	`)
	return err
}

// AddTick queues one tick row. Blocks if the writer is behind.
func (w *Writer) AddTick(symbol string, t model.Tick) {
	w.ch <- row{symbol: symbol, tick: &t}
}

// AddCandle queues one candle row.
func (w *Writer) AddCandle(symbol string, period int64, c model.Candle) {
	w.ch <- row{symbol: symbol, period: period, candle: &c}
}

func (w *Writer) run() {
	defer w.done.Done()

	batch := make([]row, 0, batchSize)
	timer := time.NewTimer(flushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d rows in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case r, ok := <-w.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, r)
			if len(batch) >= batchSize {
				flush()
				timer.Reset(flushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(flushDelay)
		}
	}
}

// insertBatch writes a mixed batch in one transaction.
func (w *Writer) insertBatch(batch []row) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	tickStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO ticks (symbol, ts_ms, ask, bid, ask_volume, bid_volume)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer tickStmt.Close()

	candleStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, period, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer candleStmt.Close()

	for _, r := range batch {
		if r.tick != nil {
			_, err = tickStmt.Exec(r.symbol, r.tick.TS.UnixMilli(),
				r.tick.Ask, r.tick.Bid, r.tick.AskVol, r.tick.BidVol)
		} else {
			c := r.candle
			_, err = candleStmt.Exec(r.symbol, r.period, c.TS.Unix(),
				c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LastTimestamp returns the newest stored tick time for a symbol, zero when
// none exist.
func (w *Writer) LastTimestamp(symbol string) (time.Time, error) {
	var ms sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(ts_ms) FROM ticks WHERE symbol = ?`, symbol,
	).Scan(&ms)
	if err != nil {
		return time.Time{}, err
	}
	if !ms.Valid {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms.Int64).UTC(), nil
}

// Close flushes pending rows and closes the database.
func (w *Writer) Close() error {
	close(w.ch)
	w.done.Wait()
	return w.db.Close()
}
