package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/seyalabs/media-hub/config"
	"github.com/seyalabs/media-hub/database/dbcore"
)

// migrateCmd 数据库迁移命令
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Run: func(cmd *cobra.Command, args []string) {
		config.InitConfig()

		db := dbcore.GetDBInstance()
		if err := dbcore.AutoMigrate(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		if err := dbcore.CloseDB(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
		log.Println("Migration completed")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
