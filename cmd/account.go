package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/seyalabs/media-hub/config"
	"github.com/seyalabs/media-hub/database/dbcore"
	"github.com/seyalabs/media-hub/database/models"
	accountsrepo "github.com/seyalabs/media-hub/database/repo/accounts"
)

// accountCmd 账户管理命令
var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Account management tools",
}

// accountCreateCmd 开通账户
var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new account and print its signing secret",
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		plan, _ := cmd.Flags().GetString("plan")
		if name == "" {
			log.Fatal("--name is required")
		}

		config.InitConfig()
		db := dbcore.GetDBInstance()
		if err := dbcore.AutoMigrate(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}

		account, err := accountsrepo.NewAccountsRepository(db).Create(name, plan)
		if err != nil {
			log.Fatalf("Failed to create account: %v", err)
		}

		fmt.Printf("identifier:      %s\n", account.Identifier)
		fmt.Printf("name:            %s\n", account.Name)
		fmt.Printf("plan:            %s\n", account.Plan)
		// 密钥只在这里出现一次,之后无法再查询
		fmt.Printf("signing_secret:  %s\n", account.SigningSecret)

		if err := dbcore.CloseDB(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountCreateCmd)

	accountCreateCmd.Flags().String("name", "", "Account name")
	accountCreateCmd.Flags().String("plan", models.PlanStarter, "Plan (starter, growth, pro)")
}
