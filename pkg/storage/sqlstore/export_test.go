package sqlstore

func (d *Driver) Rebind(query string) string { return d.rebind(query) }

func NewForDialect(dialect Dialect) *Driver { return &Driver{dialect: dialect} }
