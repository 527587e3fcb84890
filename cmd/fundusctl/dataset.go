package main

import (
	"fmt"
	"text/tabwriter"

	"fundus-go/internal/dataset"
	"fundus-go/internal/models"
	"fundus-go/internal/repository"
	"fundus-go/internal/service"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	importDB    string
	inspectRows int
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "参考数据集管理",
}

var datasetInspectCmd = &cobra.Command{
	Use:   "inspect SRC",
	Short: "加载参考数据集并输出各诊断的统计",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openDatasets(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		table := svc.Table()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "来源: %s\n行数: %d\n\n", table.Source(), table.Len())

		counts := make(map[string]int, len(dataset.Conditions))
		for _, row := range table.Rows() {
			for _, c := range row.Active() {
				counts[c]++
			}
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "诊断\t数量")
		for _, c := range dataset.Conditions {
			fmt.Fprintf(w, "%s\t%d\n", c, counts[c])
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if inspectRows > 0 {
			fmt.Fprintln(out)
			w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "左眼\t右眼\t诊断")
			for i, row := range table.Rows() {
				if i >= inspectRows {
					break
				}
				fmt.Fprintf(w, "%s\t%s\t%v\n", row.LeftFilename, row.RightFilename, row.Active())
			}
			return w.Flush()
		}
		return nil
	},
}

var datasetImportCmd = &cobra.Command{
	Use:   "import SRC",
	Short: "将 xlsx/csv 参考数据集导入数据库，替换已有数据",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		src := dataset.SourceFor(args[0], cfg.Dataset.Sheet, cfg.Dataset.GetFetchTimeout(), nil)
		if _, ok := src.(dataset.StoreSource); ok {
			return fmt.Errorf("不能从数据库导入到数据库")
		}
		rows, err := src.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("加载参考数据集失败: %w", err)
		}

		path := importDB
		if path == "" {
			path = cfg.Database.Path
		}
		db, err := models.Open(path)
		if err != nil {
			return fmt.Errorf("打开数据库失败: %w", err)
		}
		if err := models.AutoMigrate(db); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}

		repo := repository.NewDatasetRepository(db)
		svc := service.NewDatasetService(dataset.StoreSource{Store: repo}, repo, cfg.Dataset.Sheet, logger)
		imp, err := svc.ImportRows(ctx, src.Name(), rows)
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"import_id": imp.ID,
			"rows":      imp.RowCount,
			"db":        path,
		}).Info("参考数据集已导入")
		return nil
	},
}

func init() {
	datasetInspectCmd.Flags().IntVar(&inspectRows, "rows", 0, "同时输出前 N 行")
	datasetImportCmd.Flags().StringVar(&importDB, "db", "", "数据库路径（默认取配置）")
	datasetCmd.AddCommand(datasetInspectCmd, datasetImportCmd)
}
