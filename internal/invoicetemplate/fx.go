package invoicetemplate

import (
	"github.com/smallbiznis/invoicer/internal/invoicetemplate/repository"
	"github.com/smallbiznis/invoicer/internal/invoicetemplate/service"
	"go.uber.org/fx"
)

// Module wires owner-scoped invoice template storage and CRUD.
var Module = fx.Module("invoicetemplate",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
