package data

import (
	"github.com/go-kratos/kratos/v2/log"
	"github.com/mednat/tandem-extras/internal/biz"
	"github.com/mednat/tandem-extras/internal/conf"
	"github.com/mednat/tandem-extras/internal/pkg/names"
)

// NewNameTable loads the first-name table named by c.Names.Path. Without a
// path every name is unknown.
func NewNameTable(c *conf.Data, logger log.Logger) (biz.NameTable, error) {
	helper := log.NewHelper(log.With(logger, "module", "data/names"))

	if c.Names == nil || c.Names.Path == "" {
		helper.Warn("no name table configured, name signal will be unknown")
		return names.NewTable(nil)
	}
	table, err := names.LoadFile(c.Names.Path)
	if err != nil {
		return nil, err
	}
	helper.Infof("loaded %d names from %s (digest %016x)", table.Len(), c.Names.Path, table.Digest())
	return table, nil
}
