package providers

import (
	"github.com/smallbiznis/invoicer/internal/providers/email"
	"github.com/smallbiznis/invoicer/internal/providers/pdf"
	"go.uber.org/fx"
)

// Module bundles the outbound document providers: SMTP mail delivery and PDF rendering.
var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
