package actor

import "ergo.services/actor/gen"

var (
	FrameworkVersion = gen.Version{
		Name:    "Ergo Actor",
		Release: "1.0.0",
		License: gen.LicenseMIT,
	}
)
