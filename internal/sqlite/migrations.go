package sqlite

func (s Storage) RunMigrations() error {
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id VARCHAR NOT NULL PRIMARY KEY,
		auth TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS mutations (
		id VARCHAR NOT NULL PRIMARY KEY,
		at TIMESTAMP NOT NULL,
		action VARCHAR NOT NULL,
		source_id VARCHAR NOT NULL,
		event_id VARCHAR NOT NULL DEFAULT "",
		title VARCHAR NOT NULL DEFAULT "",
		status VARCHAR NOT NULL,
		detail TEXT NOT NULL DEFAULT ""
	)`,
}
