package commands

import (
	"context"
	"fmt"
	"io"

	"bookkeeping/config"
	"bookkeeping/database"
	"bookkeeping/models"
	"bookkeeping/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newSeedCategoriesCommand(configFile *string) *cobra.Command {
	var userID uint

	cmd := &cobra.Command{
		Use:   "seed-categories",
		Short: "为用户补齐默认收支类别",
		Long:  "为指定用户（--user-id）或全部用户创建缺失的默认类别，已存在的同名同类型类别保持不变。",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configFile)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if _, _, err := bootstrap(ctx, cfg); err != nil {
				return err
			}

			var ids []uint
			if userID != 0 {
				ids = []uint{userID}
			}
			return seedCategories(ctx, database.DB, ids, cmd.OutOrStdout())
		},
	}
	cmd.Flags().UintVar(&userID, "user-id", 0, "只处理指定用户，默认处理全部用户")

	return cmd
}

// seedCategories userIDs 为空时处理全部用户
func seedCategories(ctx context.Context, db *gorm.DB, userIDs []uint, out io.Writer) error {
	if len(userIDs) == 0 {
		if err := db.WithContext(ctx).Model(&models.User{}).Order("id").Pluck("id", &userIDs).Error; err != nil {
			return fmt.Errorf("查询用户失败: %w", err)
		}
	} else {
		for _, id := range userIDs {
			if err := db.WithContext(ctx).First(&models.User{}, id).Error; err != nil {
				return fmt.Errorf("用户 %d 不存在: %w", id, err)
			}
		}
	}

	var total int64
	for _, id := range userIDs {
		created, err := service.SeedDefaultCategories(ctx, db, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "用户 %d: 新建 %d 个类别\n", id, created)
		total += created
	}
	fmt.Fprintf(out, "完成：处理 %d 个用户，新建 %d 个类别\n", len(userIDs), total)
	return nil
}
