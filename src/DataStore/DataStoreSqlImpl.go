package DataStore

import (
	"bytes"
	"database/sql"
	"fmt"
	"time"

	"github.com/nhirsama/Goster-Telemetry/src/inter"
	"github.com/nhirsama/Goster-Telemetry/src/protocol"
	_ "modernc.org/sqlite"
)

type RecordStoreSql struct {
	db *sql.DB
}

func NewRecordStoreSql(dbPath string) (inter.RecordStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// 采集端每条连接一个 goroutine，SQLite 单写者
	db.SetMaxOpenConns(1)

	// 温湿度列仅供查询，NaN 在 SQLite 中会变为 NULL；raw 保留线上原始字节
	schema := `
    CREATE TABLE IF NOT EXISTS records (
       id           INTEGER PRIMARY KEY AUTOINCREMENT,
       device_id    INTEGER NOT NULL,
       sequence_num INTEGER NOT NULL,
       timestamp    INTEGER NOT NULL,
       temperature  REAL,
       humidity     REAL,
       status       INTEGER NOT NULL,
       raw          BLOB NOT NULL,
       remote       TEXT,
       received_at  BIGINT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_records_device ON records (device_id, sequence_num);
    `

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &RecordStoreSql{db: db}, nil
}

// SaveRecord 将结构体字段拆解为 SQL 参数插入
func (s *RecordStoreSql) SaveRecord(rec inter.ReceivedRecord) error {
	if len(rec.Raw) != inter.RecordSize {
		return fmt.Errorf("%w: raw 为 %d 字节", inter.ErrMalformedRecord, len(rec.Raw))
	}
	// 字段列与 raw 必须描述同一条记录，ListRecords 以 raw 为准
	if !bytes.Equal(protocol.Encode(rec.Record), rec.Raw) {
		return fmt.Errorf("%w: 字段与 raw 不一致", inter.ErrMalformedRecord)
	}
	receivedAt := rec.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	r := rec.Record
	_, err := s.db.Exec(`
		INSERT INTO records (device_id, sequence_num, timestamp, temperature, humidity, status, raw, remote, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.DeviceID, r.SequenceNum, r.Timestamp, float64(r.Temperature), float64(r.Humidity), r.Status,
		rec.Raw, rec.Remote, receivedAt.UnixNano(),
	)
	return err
}

// ListRecords 按 id 倒序读取，记录内容以 raw 为准重新解码
func (s *RecordStoreSql) ListRecords(deviceID uint8, limit int) ([]inter.ReceivedRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: 负数表示不限制
	}
	rows, err := s.db.Query(`
		SELECT id, raw, remote, received_at
		FROM records WHERE device_id = ? ORDER BY id DESC LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inter.ReceivedRecord
	for rows.Next() {
		var (
			rec        inter.ReceivedRecord
			remote     sql.NullString
			receivedAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.Raw, &remote, &receivedAt); err != nil {
			return nil, err
		}
		rec.Record, err = protocol.Decode(rec.Raw)
		if err != nil {
			return nil, fmt.Errorf("记录 %d 损坏: %w", rec.ID, err)
		}
		rec.Remote = remote.String
		rec.ReceivedAt = time.Unix(0, receivedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *RecordStoreSql) Close() error {
	return s.db.Close()
}
