package mysql

const createTableSQL = `
CREATE TABLE IF NOT EXISTS kv_store (
  k          VARCHAR(64)  NOT NULL PRIMARY KEY,
  v          LONGBLOB     NOT NULL,
  updated_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
`

const getSQL = `SELECT v FROM kv_store WHERE k = ?`

// VALUES(col) for compatibility with 5.7 and 8.0.
const putSQL = `
INSERT INTO kv_store (k, v)
VALUES (?, ?)
ON DUPLICATE KEY UPDATE
  v          = VALUES(v),
  updated_at = CURRENT_TIMESTAMP
`
