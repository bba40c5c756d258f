package migrations

import (
	"github.com/pocketbase/pocketbase/core"
)

func init() {
	core.AppMigrations.Register(func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("supervisors")
		if err != nil {
			return err
		}

		// Add consecutive_failures field
		collection.Fields.Add(&core.NumberField{
			Id:   "sup_failures",
			Name: "consecutive_failures",
		})

		// Add last_used_at field
		collection.Fields.Add(&core.DateField{
			Id:   "sup_last_used",
			Name: "last_used_at",
		})

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("supervisors")
		if err != nil {
			return err
		}

		collection.Fields.RemoveById("sup_failures")
		collection.Fields.RemoveById("sup_last_used")

		return app.Save(collection)
	})
}
