// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package models

// MigrateModels contains a list of model objects that should have DB migrations applied
var MigrateModels = []any{
	&Source{},
	&Toponym{},
	&Position{},
	&Suggestion{},
	&Nemo{},
	&ParentRegion{},
	&WikiQueue{},
	&ClusterMember{},
}

// Triggers keep the edit timestamps current for updates issued as raw SQL
var Triggers = []string{
	`CREATE TRIGGER IF NOT EXISTS set_toponym_edit AFTER UPDATE ON toponym
	BEGIN UPDATE toponym SET toponym_edited = datetime('now')
	WHERE toponym_id = old.toponym_id; END`,
	`CREATE TRIGGER IF NOT EXISTS set_position_edit AFTER UPDATE ON position
	BEGIN UPDATE position SET position_edited = datetime('now')
	WHERE position_id = old.position_id; END`,
	`CREATE TRIGGER IF NOT EXISTS set_source_edit AFTER INSERT ON source
	BEGIN UPDATE source SET source_date_edited = datetime('now')
	WHERE name = new.name; END`,
}
